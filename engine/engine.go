package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"squiggle/logger"
	"squiggle/metrics"
	"squiggle/types"
)

// Engine drives the Controller from editor events. Parsing runs off the
// event loop; results come back as diagnostics_ready / diagnostics_error
// events and are dropped if the text changed in the meantime.
type Engine struct {
	parser     Parser
	source     Source
	controller *Controller
	tracker    *metrics.MetricsTracker
	state      state

	currentCancel context.CancelFunc
	pending       *Snapshot
	mu            sync.RWMutex
	eventChan     chan Event

	// Main context and cancel for the engine lifecycle
	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool
	stopOnce   sync.Once

	config EngineConfig
}

func NewEngine(parser Parser, config EngineConfig) (*Engine, error) {
	if parser == nil {
		return nil, errors.New("engine: nil parser")
	}
	return &Engine{
		parser:     parser,
		controller: NewController(nil, config.Controller),
		tracker:    metrics.NewTracker(),
		state:      stateIdle,
		eventChan:  make(chan Event, 100),
		config:     config,
	}, nil
}

// Bind attaches the editor buffer and the display surface and subscribes to
// the buffer's events. Must be called before Start.
func (e *Engine) Bind(source Source, surface Surface) error {
	e.mu.Lock()
	e.source = source
	e.controller.SetSurface(surface)
	e.mu.Unlock()

	return source.RegisterEventHandler(func(event string) {
		eventType := EventTypeFromString(event)
		if eventType == "" {
			logger.Warn("unknown event from editor: %q", event)
			return
		}
		e.Post(Event{Type: eventType})
	})
}

// Post queues an event for the event loop. It returns false once the engine
// has stopped.
func (e *Engine) Post(event Event) bool {
	e.mu.RLock()
	ctx, stopped := e.mainCtx, e.stopped
	e.mu.RUnlock()
	if stopped || ctx == nil {
		return false
	}
	select {
	case e.eventChan <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// Metrics returns the cycle counters collected so far
func (e *Engine) Metrics() metrics.Summary {
	return e.tracker.Summary()
}

// Controller exposes the recompute pipeline, mainly for tests and the
// check command
func (e *Engine) Controller() *Controller {
	return e.controller
}

func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}

	// Create main context for engine lifecycle
	e.mainCtx, e.mainCancel = context.WithCancel(ctx)
	e.mu.Unlock()

	go e.eventLoop(e.mainCtx)
	logger.Info("engine started")
}

// Stop gracefully shuts down the engine and cleans up all resources
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		logger.Info("stopping engine...")

		e.stopped = true
		if e.mainCancel != nil {
			e.mainCancel()
		}
		if e.currentCancel != nil {
			e.currentCancel()
			e.currentCancel = nil
		}
		e.pending = nil
		e.state = stateIdle
		// eventChan stays open; senders select on mainCtx instead

		logger.Info("engine stopped")
	})
}

func (e *Engine) eventLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event loop panic recovered: %v", r)
			e.eventLoop(e.mainCtx) // Restart the event loop
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-e.eventChan:
			e.mu.RLock()
			stopped := e.stopped
			e.mu.RUnlock()

			if stopped {
				return
			}

			// Wrap event handling in its own recovery
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("event handler panic recovered for event %v: %v", event.Type, r)
					}
				}()
				e.handleEvent(event)
			}()
		}
	}
}

func (e *Engine) handleEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}

	logger.Debug("handle event: %s (state=%s)", event.Type, e.state)

	// Background events are accepted in every state
	switch event.Type {
	case EventDiagnosticsReady, EventDiagnosticsError:
		e.handleParseResult(event)
		return
	}

	e.dispatch(event)
}

func (e *Engine) handleParseResult(event Event) {
	result, ok := event.Data.(*parseResult)
	if !ok || result.snapshot == nil {
		logger.Error("malformed %s payload: %T", event.Type, event.Data)
		return
	}
	if result.snapshot != e.pending || !e.controller.IsLatest(result.snapshot) {
		logger.Debug("dropping result for superseded snapshot %d", result.snapshot.Seq)
		e.tracker.TrackStale(result.snapshot.Seq)
		return
	}

	e.pending = nil
	e.currentCancel = nil
	e.state = stateIdle

	if event.Type == EventDiagnosticsError && errors.Is(result.err, context.Canceled) {
		logger.Debug("parse canceled: %v", result.err)
		return
	}

	if result.err != nil {
		e.tracker.TrackParseError(result.snapshot.Seq)
	}

	cycle, err := e.controller.Complete(result.snapshot, result.diagnostics, result.err)
	if err != nil {
		if errors.Is(err, types.ErrStaleSnapshot) {
			e.tracker.TrackStale(result.snapshot.Seq)
			return
		}
		logger.Error("complete snapshot %d: %v", result.snapshot.Seq, err)
		return
	}
	e.tracker.TrackCompleted(&metrics.CycleMetrics{
		Seq:         result.snapshot.Seq,
		Outcome:     cycle.Directive.Kind,
		Diagnostics: len(cycle.Diagnostics),
		ParseTime:   result.elapsed,
	})
}

// recompute captures the current source text and starts parsing it in the
// background, canceling any parse still running for an older snapshot
func (e *Engine) recompute() {
	if e.stopped || e.source == nil {
		return
	}

	e.cancelPending()

	content, lineEnding, err := e.source.Snapshot()
	if err != nil {
		logger.Error("read source buffer: %v", err)
		e.state = stateIdle
		return
	}
	snap, err := e.controller.Capture(content, lineEnding)
	if err != nil {
		logger.Error("capture snapshot: %v", err)
		e.state = stateIdle
		return
	}

	ctx, cancel := e.parseContext()
	e.currentCancel = cancel
	e.pending = snap
	e.state = stateComputing

	go func() {
		defer cancel()

		start := time.Now()
		diagnostics, err := e.parser.Parse(ctx, snap.Doc.Text())
		elapsed := time.Since(start)
		if err != nil {
			e.send(Event{Type: EventDiagnosticsError, Data: &parseResult{snapshot: snap, err: fmt.Errorf("parse snapshot %d: %w", snap.Seq, err), elapsed: elapsed}})
			return
		}
		e.send(Event{Type: EventDiagnosticsReady, Data: &parseResult{snapshot: snap, diagnostics: diagnostics, elapsed: elapsed}})
	}()
}

func (e *Engine) parseContext() (context.Context, context.CancelFunc) {
	if e.config.ParserTimeout > 0 {
		return context.WithTimeout(e.mainCtx, e.config.ParserTimeout)
	}
	return context.WithCancel(e.mainCtx)
}

// send posts a background event without holding the engine lock
func (e *Engine) send(event Event) {
	select {
	case e.eventChan <- event:
	case <-e.mainCtx.Done():
	}
}

func (e *Engine) cancelPending() {
	if e.currentCancel != nil {
		e.currentCancel()
		e.currentCancel = nil
	}
	e.pending = nil
}

// clear cancels outstanding work and hides the highlight
func (e *Engine) clear() {
	e.cancelPending()
	e.state = stateIdle
	if err := e.controller.Reset(); err != nil {
		logger.Error("clear surface: %v", err)
	}
}
