package metrics

import (
	"fmt"
	"sync"
	"time"

	"squiggle/logger"
	"squiggle/types"
)

const (
	EventCompleted  = "cycle_completed"
	EventStale      = "cycle_stale"
	EventParseError = "cycle_parse_error"
)

// CycleMetrics describes one recompute cycle that reached the surface
type CycleMetrics struct {
	Seq         uint64
	Outcome     types.DirectiveKind
	Diagnostics int
	ParseTime   time.Duration
}

// Summary is a point-in-time copy of the tracker counters
type Summary struct {
	Completed   int
	Stale       int
	ParseErrors int
	Outcomes    map[types.DirectiveKind]int
	ParseTime   time.Duration // total over completed cycles
}

// MeanParseTime is zero when nothing completed
func (s Summary) MeanParseTime() time.Duration {
	if s.Completed == 0 {
		return 0
	}
	return s.ParseTime / time.Duration(s.Completed)
}

func (s Summary) String() string {
	return fmt.Sprintf("%d cycles (range=%d point=%d hide=%d), %d stale, %d parse errors, mean parse %s",
		s.Completed,
		s.Outcomes[types.DirectiveRange],
		s.Outcomes[types.DirectivePoint],
		s.Outcomes[types.DirectiveHide],
		s.Stale,
		s.ParseErrors,
		s.MeanParseTime(),
	)
}

// MetricsTracker counts recompute outcomes for one engine. It is kept in
// process and reported through the log.
type MetricsTracker struct {
	mu      sync.Mutex
	summary Summary
}

func NewTracker() *MetricsTracker {
	return &MetricsTracker{
		summary: Summary{Outcomes: make(map[types.DirectiveKind]int)},
	}
}

func (t *MetricsTracker) TrackCompleted(m *CycleMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Completed++
	t.summary.Outcomes[m.Outcome]++
	t.summary.ParseTime += m.ParseTime
	logger.Debug("metrics: %s seq=%d outcome=%s diagnostics=%d parse=%s", EventCompleted, m.Seq, m.Outcome, m.Diagnostics, m.ParseTime)
}

// TrackStale counts a parse result dropped because the text moved on
func (t *MetricsTracker) TrackStale(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Stale++
	logger.Debug("metrics: %s seq=%d", EventStale, seq)
}

func (t *MetricsTracker) TrackParseError(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.ParseErrors++
	logger.Debug("metrics: %s seq=%d", EventParseError, seq)
}

func (t *MetricsTracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.summary
	s.Outcomes = make(map[types.DirectiveKind]int, len(t.summary.Outcomes))
	for k, v := range t.summary.Outcomes {
		s.Outcomes[k] = v
	}
	return s
}
