package engine

import (
	"time"

	"squiggle/types"
)

type EventType string

// Event type constants
const (
	EventTextChanged      EventType = "text_changed"
	EventBufferEnter      EventType = "buffer_enter"
	EventClear            EventType = "clear"
	EventDiagnosticsReady EventType = "diagnostics_ready"
	EventDiagnosticsError EventType = "diagnostics_error"
)

var eventTypeMap map[string]EventType

func init() {
	eventTypeMap = buildEventTypeMap()
}

// buildEventTypeMap lists the events the editor may send by name. Background
// events are produced internally and cannot be injected over RPC.
func buildEventTypeMap() map[string]EventType {
	eventMap := make(map[string]EventType)
	for _, eventType := range []EventType{
		EventTextChanged,
		EventBufferEnter,
		EventClear,
	} {
		eventMap[string(eventType)] = eventType
	}
	return eventMap
}

func EventTypeFromString(s string) EventType {
	if eventType, exists := eventTypeMap[s]; exists {
		return eventType
	}
	return ""
}

type Event struct {
	Type EventType
	Data any
}

// parseResult is the payload of diagnostics_ready and diagnostics_error
type parseResult struct {
	snapshot    *Snapshot
	diagnostics []*types.Diagnostic
	err         error
	elapsed     time.Duration
}
