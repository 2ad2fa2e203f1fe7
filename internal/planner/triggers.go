package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heliplan/heliplan-core/internal/bridge"
)

// defaultVariablesDB is the namespace consulted for symbolic anchors
// when a trigger does not name one.
const defaultVariablesDB = "geo_variables"

// eventQueueSize buffers button events per trigger while an earlier
// activation of the same trigger is still running.
const eventQueueSize = 16

// ─── Immediately ────────────────────────────────────────────────────────────

// immediateTrigger fires inline during the evaluation pass. It holds no
// live resources, so it fires again on every re-evaluation.
type immediateTrigger struct{}

func (immediateTrigger) Kind() string        { return "Immediately" }
func (immediateTrigger) Class() TriggerClass { return ClassInline }

func (immediateTrigger) Bind(ctx context.Context, rt *Runtime, fire FireFunc) error {
	fire(ctx)
	return nil
}

func (immediateTrigger) Unbind(context.Context) error { return nil }

// ─── Timed variants ─────────────────────────────────────────────────────────

type onceArgs struct {
	Time        string   `yaml:"time"`
	Alias       string   `yaml:"alias"`
	ShiftIfLate bool     `yaml:"shift_if_late"`
	VariablesDB string   `yaml:"variables_db"`
	Tags        []string `yaml:"tags"`
}

// newOnceTrigger builds a one-shot trigger. Without shift_if_late a
// past instant fires immediately on bind; with it, the resolved time is
// moved forward whole days until it is in the future.
func newOnceTrigger(args yaml.Node) (Trigger, error) {
	a := onceArgs{VariablesDB: defaultVariablesDB}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Time == "" {
		return nil, fmt.Errorf("%w: Once requires a time", ErrConfig)
	}

	alias := a.Alias
	if alias == "" {
		alias = a.Time
	}
	return &timedTrigger{
		kind:  "Once",
		alias: alias,
		tags:  a.Tags,
		first: func(ctx context.Context, rt *Runtime) (time.Time, error) {
			due, err := resolveExpr(ctx, rt, a.Time, a.VariablesDB)
			if err != nil {
				return time.Time{}, err
			}
			if a.ShiftIfLate {
				for now := rt.Now(); !due.After(now); {
					due = due.AddDate(0, 0, 1)
				}
			}
			return due, nil
		},
	}, nil
}

type dailyArgs struct {
	Time        string   `yaml:"time"`
	Alias       string   `yaml:"alias"`
	VariablesDB string   `yaml:"variables_db"`
	Tags        []string `yaml:"tags"`
}

// newDailyTrigger builds a recurring trigger that re-resolves its
// expression after every fire, so anchor changes (fresh solar variables
// for a new day) are picked up without re-evaluating the plan.
func newDailyTrigger(args yaml.Node) (Trigger, error) {
	a := dailyArgs{VariablesDB: defaultVariablesDB}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Time == "" {
		return nil, fmt.Errorf("%w: Daily requires a time", ErrConfig)
	}

	alias := a.Alias
	if alias == "" {
		alias = a.Time
	}
	resolve := func(ctx context.Context, rt *Runtime) (time.Time, error) {
		due, err := resolveExpr(ctx, rt, a.Time, a.VariablesDB)
		if err != nil {
			return time.Time{}, err
		}
		for now := rt.Now(); !due.After(now); {
			due = due.AddDate(0, 0, 1)
		}
		return due, nil
	}
	return &timedTrigger{
		kind:  "Daily",
		alias: alias,
		tags:  a.Tags,
		first: resolve,
		next: func(ctx context.Context, rt *Runtime, _ time.Time) (time.Time, error) {
			return resolve(ctx, rt)
		},
	}, nil
}

type periodicArgs struct {
	Interval    Duration `yaml:"interval"`
	StartAt     string   `yaml:"start_at"`
	Alias       string   `yaml:"alias"`
	VariablesDB string   `yaml:"variables_db"`
	Tags        []string `yaml:"tags"`
}

// newPeriodicTrigger builds an interval trigger. start_at fixes the
// phase: a past start is advanced by whole intervals, so the trigger
// keeps firing at start_at + k*interval regardless of when it binds.
func newPeriodicTrigger(args yaml.Node) (Trigger, error) {
	var a periodicArgs
	a.VariablesDB = defaultVariablesDB
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	interval := time.Duration(a.Interval)
	if interval <= 0 {
		return nil, fmt.Errorf("%w: Periodic requires a positive interval", ErrConfig)
	}

	alias := a.Alias
	if alias == "" {
		alias = fmt.Sprintf("every %s", interval)
	}
	advance := func(due, now time.Time) time.Time {
		for !due.After(now) {
			due = due.Add(interval)
		}
		return due
	}
	return &timedTrigger{
		kind:  "Periodic",
		alias: alias,
		tags:  a.Tags,
		first: func(ctx context.Context, rt *Runtime) (time.Time, error) {
			if a.StartAt == "" {
				return rt.Now().Add(interval), nil
			}
			due, err := resolveExpr(ctx, rt, a.StartAt, a.VariablesDB)
			if err != nil {
				return time.Time{}, err
			}
			return advance(due, rt.Now()), nil
		},
		next: func(_ context.Context, rt *Runtime, prevDue time.Time) (time.Time, error) {
			return advance(prevDue, rt.Now()), nil
		},
	}, nil
}

type minutelyArgs struct {
	Alias string   `yaml:"alias"`
	Tags  []string `yaml:"tags"`
}

// newMinutelyTrigger builds a trigger aligned to wall-clock minute
// boundaries.
func newMinutelyTrigger(args yaml.Node) (Trigger, error) {
	var a minutelyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	alias := a.Alias
	if alias == "" {
		alias = "minutely"
	}
	atNextMinute := func(_ context.Context, rt *Runtime) (time.Time, error) {
		return rt.Now().Truncate(time.Minute).Add(time.Minute), nil
	}
	return &timedTrigger{
		kind:  "Minutely",
		alias: alias,
		tags:  a.Tags,
		first: atNextMinute,
		next: func(ctx context.Context, rt *Runtime, _ time.Time) (time.Time, error) {
			return atNextMinute(ctx, rt)
		},
	}, nil
}

// ─── OnExternalEvent ────────────────────────────────────────────────────────

type eventingArgs struct {
	ResourceID  string `yaml:"resource_id"`
	EventFilter string `yaml:"event_filter"`
}

// eventTrigger fires on hardware button events matching its filter.
// Matching events are queued and consumed by one goroutine, so
// activations of the same trigger never overlap.
type eventTrigger struct {
	resourceID string
	event      string

	mu     sync.Mutex
	bound  bool
	cancel func()
	stop   chan struct{}
	done   chan struct{}
}

func newEventTrigger(args yaml.Node) (Trigger, error) {
	var a eventingArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ResourceID == "" || a.EventFilter == "" {
		return nil, fmt.Errorf("%w: OnExternalEvent requires resource_id and event_filter", ErrConfig)
	}
	return &eventTrigger{resourceID: a.ResourceID, event: a.EventFilter}, nil
}

func (t *eventTrigger) Kind() string        { return "OnExternalEvent" }
func (t *eventTrigger) Class() TriggerClass { return ClassEvent }

func (t *eventTrigger) Bind(ctx context.Context, rt *Runtime, fire FireFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bound {
		return ErrAlreadyBound
	}

	queue := make(chan bridge.ButtonEvent, eventQueueSize)
	stop := make(chan struct{})
	done := make(chan struct{})

	cancel, err := rt.Events.OnButtonEvent(func(ev bridge.ButtonEvent) {
		if ev.ResourceID != t.resourceID || ev.Event != t.event {
			return
		}
		select {
		case queue <- ev:
		default:
			rt.Logger.Warn("button event dropped, activation queue full",
				"resource_id", ev.ResourceID, "event", ev.Event)
		}
	})
	if err != nil {
		return fmt.Errorf("planner: subscribe events for %s: %w", t.resourceID, err)
	}

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case ev := <-queue:
				rt.Logger.Info("button activation",
					"resource_id", ev.ResourceID, "event", ev.Event)
				fire(ctx)
			}
		}
	}()

	t.bound = true
	t.cancel = cancel
	t.stop = stop
	t.done = done
	return nil
}

func (t *eventTrigger) Unbind(ctx context.Context) error {
	t.mu.Lock()
	if !t.bound {
		t.mu.Unlock()
		return nil
	}
	t.bound = false
	cancel, stop, done := t.cancel, t.stop, t.done
	t.mu.Unlock()

	// Stop new deliveries first, then let the consumer finish the
	// activation it may be in the middle of.
	cancel()
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
