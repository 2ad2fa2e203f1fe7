package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/heliplan/heliplan-core/internal/timeexpr"
)

// reEvalQueueSize bounds pending re-evaluation requests. Requests
// arriving while the queue is full are dropped with a warning; a
// re-evaluation that is already queued covers them.
const reEvalQueueSize = 4

// Evaluation reasons recorded in telemetry.
const (
	reasonStartup = "startup"
	reasonPlan    = "plan"
	reasonAPI     = "api"
)

// ReEvalRequest asks the engine to rebuild trigger bindings. Zero flags
// re-run only the inline entries and bind anything still unbound.
type ReEvalRequest struct {
	// ResetSchedule unbinds schedule-backed triggers first, so their due
	// times are recomputed against current variables.
	ResetSchedule bool `json:"reset_schedule"`

	// ResetEventListeners unbinds event stream subscriptions first.
	ResetEventListeners bool `json:"reset_event_listeners"`

	// Reason tags the evaluation in telemetry.
	Reason string `json:"-"`
}

// ActivationRecord describes one completed activation. It is pushed to
// WebSocket subscribers and mirrored into telemetry.
type ActivationRecord struct {
	Entry      int       `json:"entry"`
	Trigger    string    `json:"trigger"`
	Action     string    `json:"action"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

type entryState struct {
	entry Entry
	bound bool
}

// Engine binds a plan's triggers and dispatches their activations.
//
// One mutex serializes every evaluation pass, and queued re-evaluation
// requests are consumed one at a time by the Start goroutine, so two
// rebuilds can never interleave.
type Engine struct {
	rt Runtime

	evalMu  sync.Mutex
	entries []entryState
	closed  bool

	reqCh     chan ReEvalRequest
	startOnce sync.Once
}

// New creates an engine for the given plan. The runtime's store,
// scheduler, bridge client, geo resolver and event source are required;
// logger, telemetry, hub and clock default to no-ops.
func New(plan *Plan, rt Runtime) (*Engine, error) {
	if plan == nil || len(plan.Entries) == 0 {
		return nil, fmt.Errorf("%w: plan has no entries", ErrConfig)
	}
	if rt.Store == nil {
		return nil, errors.New("planner: store is required")
	}
	if rt.Scheduler == nil {
		return nil, errors.New("planner: scheduler is required")
	}
	if rt.Bridge == nil {
		return nil, errors.New("planner: bridge client is required")
	}
	if rt.Geo == nil {
		return nil, errors.New("planner: geo resolver is required")
	}
	if rt.Events == nil {
		return nil, errors.New("planner: event source is required")
	}

	entries := make([]entryState, len(plan.Entries))
	for i, en := range plan.Entries {
		entries[i] = entryState{entry: en}
	}

	e := &Engine{
		rt:      rt.withDefaults(),
		entries: entries,
		reqCh:   make(chan ReEvalRequest, reEvalQueueSize),
	}
	e.rt.reevaluate = e.Enqueue
	return e, nil
}

// Evaluate binds every entry of the plan, in order. Inline triggers run
// during the pass, so by the time a later entry binds, everything an
// earlier entry stored is in place.
//
// Plan configuration errors (invalid arguments, unresolvable time
// expressions) abort evaluation with the failing entry's position;
// collaborator errors are logged and the remaining entries still bind.
func (e *Engine) Evaluate(ctx context.Context) error {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()
	return e.evaluateLocked(ctx, reasonStartup)
}

// ReEvaluate tears down the binding classes the request selects and
// runs a fresh evaluation pass. A trigger whose unbind fails stays
// bound and is skipped by the rebind, so activations are never doubled.
func (e *Engine) ReEvaluate(ctx context.Context, req ReEvalRequest) error {
	if req.Reason == "" {
		req.Reason = reasonAPI
	}

	e.evalMu.Lock()
	defer e.evalMu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.rt.Logger.Info("re-evaluating plan",
		"reason", req.Reason,
		"reset_schedule", req.ResetSchedule,
		"reset_event_listeners", req.ResetEventListeners,
	)

	var errs []error
	for i := range e.entries {
		st := &e.entries[i]
		if !st.bound {
			continue
		}
		switch st.entry.Trigger.Class() {
		case ClassInline:
			continue
		case ClassSchedule:
			if !req.ResetSchedule {
				continue
			}
		case ClassEvent:
			if !req.ResetEventListeners {
				continue
			}
		}
		if err := st.entry.Trigger.Unbind(ctx); err != nil {
			errs = append(errs, fmt.Errorf("plan entry %d (%s): unbind: %w",
				i+1, st.entry.Trigger.Kind(), err))
			continue
		}
		st.bound = false
	}

	if err := e.evaluateLocked(ctx, req.Reason); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Enqueue queues a re-evaluation request without blocking. The Start
// goroutine consumes the queue; when it is full the request is dropped.
func (e *Engine) Enqueue(req ReEvalRequest) {
	select {
	case e.reqCh <- req:
	default:
		e.rt.Logger.Warn("re-evaluation queue full, request dropped", "reason", req.Reason)
	}
}

// Start launches the re-evaluation consumer. It exits with the context.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		go e.loop(ctx)
	})
}

func (e *Engine) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-e.reqCh:
			if err := e.ReEvaluate(ctx, req); err != nil {
				e.rt.Logger.Error("plan re-evaluation failed", "reason", req.Reason, "error", err)
			}
		}
	}
}

// Close unbinds every trigger and awaits in-flight activations. The
// engine cannot be evaluated again afterwards.
func (e *Engine) Close(ctx context.Context) error {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	for i := range e.entries {
		st := &e.entries[i]
		if !st.bound || st.entry.Trigger.Class() == ClassInline {
			continue
		}
		if err := st.entry.Trigger.Unbind(ctx); err != nil {
			errs = append(errs, fmt.Errorf("plan entry %d (%s): unbind: %w",
				i+1, st.entry.Trigger.Kind(), err))
		}
		st.bound = false
	}
	e.rt.Logger.Info("plan engine closed")
	return errors.Join(errs...)
}

func (e *Engine) evaluateLocked(ctx context.Context, reason string) error {
	if e.closed {
		return ErrClosed
	}
	start := time.Now()
	failed := 0

	for i := range e.entries {
		st := &e.entries[i]
		if st.bound && st.entry.Trigger.Class() != ClassInline {
			continue
		}
		kind := st.entry.Trigger.Kind()
		if err := st.entry.Trigger.Bind(ctx, &e.rt, e.fireFunc(i, st.entry)); err != nil {
			if isConfigFatal(err) {
				return fmt.Errorf("plan entry %d (%s): %w", i+1, kind, err)
			}
			failed++
			e.rt.Logger.Error("trigger bind failed", "entry", i+1, "trigger", kind, "error", err)
			continue
		}
		st.bound = true
		e.rt.Logger.Debug("trigger bound", "entry", i+1, "trigger", kind)
	}

	duration := time.Since(start)
	e.rt.Logger.Info("plan evaluated",
		"reason", reason,
		"entries", len(e.entries),
		"failed", failed,
		"duration", duration.String(),
	)
	e.rt.Telemetry.WriteEvaluation(reason, len(e.entries), failed, duration)
	e.rt.Hub.Broadcast("schedule", e.rt.Scheduler.Snapshot())
	return nil
}

// fireFunc wraps an entry's action with logging, telemetry and the
// WebSocket activation feed. Triggers invoke the wrapper; action errors
// stop here and never tear the binding down.
func (e *Engine) fireFunc(idx int, entry Entry) FireFunc {
	trigger, action := entry.Trigger.Kind(), entry.Action.Kind()
	return func(ctx context.Context) {
		started := time.Now()
		err := entry.Action.Execute(ctx, &e.rt)
		duration := time.Since(started)

		rec := ActivationRecord{
			Entry:      idx + 1,
			Trigger:    trigger,
			Action:     action,
			StartedAt:  started,
			DurationMS: duration.Milliseconds(),
		}
		switch {
		case err == nil:
			e.rt.Logger.Info("activation complete",
				"entry", idx+1, "trigger", trigger, "action", action,
				"duration", duration.String())
		case errors.Is(err, ErrNoStoredScene):
			rec.Error = err.Error()
			e.rt.Logger.Warn("activation skipped",
				"entry", idx+1, "trigger", trigger, "action", action, "reason", err)
		case errors.Is(err, context.Canceled):
			rec.Error = err.Error()
			e.rt.Logger.Warn("activation aborted",
				"entry", idx+1, "trigger", trigger, "action", action)
		default:
			rec.Error = err.Error()
			e.rt.Logger.Error("activation failed",
				"entry", idx+1, "trigger", trigger, "action", action, "error", err)
		}
		e.rt.Telemetry.WriteActivation(trigger, idx+1, action, duration, err)
		e.rt.Hub.Broadcast("activation", rec)
	}
}

// isConfigFatal reports whether a bind error is a plan defect rather
// than a collaborator failure.
func isConfigFatal(err error) bool {
	return errors.Is(err, ErrConfig) || errors.Is(err, timeexpr.ErrExpression)
}
