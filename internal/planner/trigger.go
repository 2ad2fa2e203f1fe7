package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/heliplan/heliplan-core/internal/schedule"
	"github.com/heliplan/heliplan-core/internal/timeexpr"
)

// FireFunc runs an entry's action. The engine wraps the raw action with
// logging and telemetry before handing it to the trigger.
type FireFunc func(ctx context.Context)

// TriggerClass groups triggers by the subsystem their binding lives in,
// which is what selective re-evaluation tears down.
type TriggerClass int

const (
	// ClassInline triggers fire during the evaluation pass and hold no
	// live resources.
	ClassInline TriggerClass = iota

	// ClassSchedule triggers own a scheduled job.
	ClassSchedule

	// ClassEvent triggers own an event stream subscription.
	ClassEvent
)

// Trigger is one activation source of a plan entry.
//
// Lifecycle: Bind resolves arguments and registers the underlying job
// or subscription; Unbind cancels it and waits until no activation is
// in flight, which is what makes re-evaluation race-free. Bind on an
// already-bound trigger returns ErrAlreadyBound.
type Trigger interface {
	// Kind returns the plan-file type name ("Daily", "OnExternalEvent", ...).
	Kind() string

	// Class reports which subsystem the bound trigger occupies.
	Class() TriggerClass

	// Bind arms the trigger; fire runs on every activation. The context
	// must stay valid for the trigger's bound lifetime.
	Bind(ctx context.Context, rt *Runtime, fire FireFunc) error

	// Unbind disarms the trigger and awaits in-flight activations.
	Unbind(ctx context.Context) error
}

// resolveExpr evaluates a plan time expression at the current instant,
// looking symbolic anchors up in the given store namespace.
func resolveExpr(ctx context.Context, rt *Runtime, expr, variablesDB string) (time.Time, error) {
	vars := timeexpr.VarsFunc(func(name string) (string, bool) {
		v, err := rt.Store.Get(ctx, variablesDB, name)
		if err != nil {
			return "", false
		}
		return v, true
	})
	return timeexpr.Resolve(expr, rt.Now(), vars)
}

// timedTrigger is the shared schedule-backed lifecycle: resolve the
// first due time at bind and register a job; on every natural fire run
// the action, then register the follow-up occurrence. One-shot variants
// leave next nil and go terminal after firing.
type timedTrigger struct {
	kind  string
	alias string
	tags  []string

	// first resolves the initial due time at bind; next resolves the
	// follow-up after a natural fire.
	first func(ctx context.Context, rt *Runtime) (time.Time, error)
	next  func(ctx context.Context, rt *Runtime, prevDue time.Time) (time.Time, error)

	mu    sync.Mutex
	bound bool
	jobID string
	dueAt time.Time
	rt    *Runtime
	fire  FireFunc
	slot  chan struct{} // capacity 1, held for the length of one activation
}

func (t *timedTrigger) Kind() string        { return t.kind }
func (t *timedTrigger) Class() TriggerClass { return ClassSchedule }

func (t *timedTrigger) Bind(ctx context.Context, rt *Runtime, fire FireFunc) error {
	t.mu.Lock()
	if t.bound {
		t.mu.Unlock()
		return ErrAlreadyBound
	}
	t.bound = true
	t.jobID = ""
	t.rt = rt
	t.fire = fire
	t.slot = make(chan struct{}, 1)
	t.mu.Unlock()

	due, err := t.first(ctx, rt)
	if err != nil {
		t.mu.Lock()
		t.bound = false
		t.mu.Unlock()
		return err
	}
	return t.register(due, time.Time{}, "")
}

// register adds the next job while still bound. An unbind that raced
// the resolution wins: the registration is dropped. fromID is the job
// the caller is succeeding; if another activation already installed a
// newer job the registration is dropped too, so an out-of-band run
// overlapping a natural fire never leaves two live chains.
func (t *timedTrigger) register(due, prevRun time.Time, fromID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.bound || t.jobID != fromID {
		return nil
	}

	id, err := t.rt.Scheduler.Register(schedule.Job{
		DueAt:   due,
		Tags:    t.tags,
		Alias:   t.alias,
		PrevRun: prevRun,
		Run:     t.run,
	})
	if err != nil {
		return err
	}
	t.jobID = id
	t.dueAt = due
	return nil
}

// run is the job payload. Natural fires have already removed the job
// from the scheduler table; an out-of-band run has not, and must leave
// the pending schedule untouched.
func (t *timedTrigger) run(ctx context.Context) {
	t.mu.Lock()
	slot, fire := t.slot, t.fire
	id, prevDue := t.jobID, t.dueAt
	t.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-slot }()

	t.mu.Lock()
	bound := t.bound
	rt := t.rt
	t.mu.Unlock()
	if !bound {
		return
	}

	fire(ctx)

	if t.next == nil || rt.Scheduler.Has(id) {
		return
	}

	due, err := t.next(ctx, rt, prevDue)
	if err != nil {
		rt.Logger.Error("trigger could not resolve its next occurrence",
			"trigger", t.kind, "alias", t.alias, "error", err)
		return
	}
	if err := t.register(due, rt.Now(), id); err != nil {
		rt.Logger.Error("trigger could not register its next occurrence",
			"trigger", t.kind, "alias", t.alias, "due_at", due, "error", err)
	}
}

func (t *timedTrigger) Unbind(ctx context.Context) error {
	t.mu.Lock()
	if !t.bound {
		t.mu.Unlock()
		return nil
	}
	t.bound = false
	id := t.jobID
	slot := t.slot
	rt := t.rt
	t.mu.Unlock()

	// Remove the pending job; already fired or never registered is fine.
	if id != "" {
		if err := rt.Scheduler.Cancel(id); err != nil && !errors.Is(err, schedule.ErrNotFound) {
			return err
		}
	}

	// Wait out any in-flight activation.
	select {
	case slot <- struct{}{}:
		<-slot
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
