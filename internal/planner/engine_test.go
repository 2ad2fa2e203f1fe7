package planner

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heliplan/heliplan-core/internal/bridge"
	"github.com/heliplan/heliplan-core/internal/timeexpr"
)

// countAction increments a counter; safe to fire from any goroutine.
type countAction struct {
	name string
	n    *atomic.Int32
	err  error
}

func (a countAction) Kind() string { return a.name }

func (a countAction) Execute(context.Context, *Runtime) error {
	a.n.Add(1)
	return a.err
}

// stubTrigger records bind/unbind calls and fails on demand.
type stubTrigger struct {
	kind      string
	class     TriggerClass
	bindErr   error
	unbindErr error
	binds     atomic.Int32
	unbinds   atomic.Int32
}

func (s *stubTrigger) Kind() string        { return s.kind }
func (s *stubTrigger) Class() TriggerClass { return s.class }

func (s *stubTrigger) Bind(context.Context, *Runtime, FireFunc) error {
	if s.bindErr != nil {
		return s.bindErr
	}
	s.binds.Add(1)
	return nil
}

func (s *stubTrigger) Unbind(context.Context) error {
	if s.unbindErr != nil {
		return s.unbindErr
	}
	s.unbinds.Add(1)
	return nil
}

func mustTrigger(t *testing.T, build func(yaml.Node) (Trigger, error), src string) Trigger {
	t.Helper()
	tr, err := build(yamlArgs(t, src))
	if err != nil {
		t.Fatalf("build trigger: %v", err)
	}
	return tr
}

// ─── Construction ───────────────────────────────────────────────────────────

func TestEngine_New_Validation(t *testing.T) {
	rig := newTestRig(t, nil)
	var n atomic.Int32
	plan := &Plan{Entries: []Entry{{Trigger: immediateTrigger{}, Action: countAction{"Count", &n, nil}}}}

	if _, err := New(nil, rig.rt); !errors.Is(err, ErrConfig) {
		t.Fatalf("nil plan: got %v, want ErrConfig", err)
	}
	if _, err := New(&Plan{}, rig.rt); !errors.Is(err, ErrConfig) {
		t.Fatalf("empty plan: got %v, want ErrConfig", err)
	}
	if _, err := New(plan, Runtime{}); err == nil {
		t.Fatal("missing collaborators accepted")
	}
	if _, err := New(plan, rig.rt); err != nil {
		t.Fatalf("valid runtime rejected: %v", err)
	}
}

// ─── Evaluation ─────────────────────────────────────────────────────────────

func TestEngine_EvaluateBindsInOrder(t *testing.T) {
	rig := newTestRig(t, nil)
	var log []string

	// Inline fires happen during the pass itself, so entry order is
	// execution order.
	plan := &Plan{Entries: []Entry{
		{Trigger: immediateTrigger{}, Action: recordAction{name: "first", log: &log}},
		{Trigger: immediateTrigger{}, Action: recordAction{name: "second", log: &log}},
		{Trigger: immediateTrigger{}, Action: recordAction{name: "third", log: &log}},
	}}
	eng, err := New(plan, rig.rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if strings.Join(log, ",") != "first,second,third" {
		t.Fatalf("order %v", log)
	}

	evals := rig.tel.evaluationLog()
	if len(evals) != 1 || evals[0].Reason != reasonStartup || evals[0].Entries != 3 || evals[0].Failed != 0 {
		t.Fatalf("evaluation telemetry %+v", evals)
	}
}

func TestEngine_BindErrorAbortsWithPosition(t *testing.T) {
	rig := newTestRig(t, nil)
	var n atomic.Int32

	plan := &Plan{Entries: []Entry{
		{Trigger: immediateTrigger{}, Action: countAction{"Count", &n, nil}},
		{
			Trigger: mustTrigger(t, newDailyTrigger, `time: "@sunset"`),
			Action:  countAction{"Count", &n, nil},
		},
	}}
	eng, err := New(plan, rig.rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = eng.Evaluate(context.Background())
	if !errors.Is(err, timeexpr.ErrExpression) {
		t.Fatalf("got %v, want ErrExpression", err)
	}
	if !strings.Contains(err.Error(), "plan entry 2") {
		t.Errorf("error %q does not name the failing entry", err)
	}
	if n.Load() != 1 {
		t.Errorf("entries before the failure should have run, count %d", n.Load())
	}
}

func TestEngine_CollaboratorBindErrorContinues(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.events.failWith = errors.New("stream down")
	var n atomic.Int32

	plan := &Plan{Entries: []Entry{
		{
			Trigger: mustTrigger(t, newEventTrigger, "resource_id: btn-1\nevent_filter: short_release"),
			Action:  countAction{"Count", &n, nil},
		},
		{Trigger: immediateTrigger{}, Action: countAction{"Count", &n, nil}},
	}}
	eng, err := New(plan, rig.rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// A collaborator failure is not a plan defect: later entries bind.
	if err := eng.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if n.Load() != 1 {
		t.Fatalf("inline entry did not run, count %d", n.Load())
	}
	evals := rig.tel.evaluationLog()
	if len(evals) != 1 || evals[0].Failed != 1 {
		t.Fatalf("evaluation telemetry %+v, want one failed bind", evals)
	}
}

func TestEngine_ActionErrorIsRecoverable(t *testing.T) {
	rig := newTestRig(t, nil)
	boom := errors.New("boom")
	var n atomic.Int32

	plan := &Plan{Entries: []Entry{
		{Trigger: immediateTrigger{}, Action: countAction{"Count", &n, boom}},
	}}
	eng, err := New(plan, rig.rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Evaluate(context.Background()); err != nil {
		t.Fatalf("action errors must not fail evaluation: %v", err)
	}

	acts := rig.tel.activationLog()
	if len(acts) != 1 || !errors.Is(acts[0].Err, boom) {
		t.Fatalf("activation telemetry %+v", acts)
	}
}

func TestEngine_SkippedActivation(t *testing.T) {
	rig := newTestRig(t, nil)

	// Toggling before anything was stored is a logged no-op.
	plan := &Plan{Entries: []Entry{
		{
			Trigger: immediateTrigger{},
			Action:  mustAction(t, newToggleStoredScene, `db_key: current`),
		},
	}}
	eng, err := New(plan, rig.rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	acts := rig.tel.activationLog()
	if len(acts) != 1 || !errors.Is(acts[0].Err, ErrNoStoredScene) {
		t.Fatalf("activation telemetry %+v, want ErrNoStoredScene", acts)
	}
	if calls := rig.bridge.groupCommands(); len(calls) != 0 {
		t.Fatalf("bridge touched on a skipped activation: %v", calls)
	}
}

func mustAction(t *testing.T, build func(yaml.Node) (Action, error), src string) Action {
	t.Helper()
	a, err := build(yamlArgs(t, src))
	if err != nil {
		t.Fatalf("build action: %v", err)
	}
	return a
}

// ─── Activation records ─────────────────────────────────────────────────────

func TestEngine_PublishesActivationRecords(t *testing.T) {
	rig := newTestRig(t, nil)
	var n atomic.Int32

	plan := &Plan{Entries: []Entry{
		{Trigger: immediateTrigger{}, Action: countAction{"Count", &n, nil}},
	}}
	eng, err := New(plan, rig.rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	payloads := rig.hub.onChannel("activation")
	if len(payloads) != 1 {
		t.Fatalf("got %d activation broadcasts, want 1", len(payloads))
	}
	rec, ok := payloads[0].(ActivationRecord)
	if !ok {
		t.Fatalf("payload %T, want ActivationRecord", payloads[0])
	}
	if rec.Entry != 1 || rec.Trigger != "Immediately" || rec.Action != "Count" || rec.Error != "" {
		t.Fatalf("record %+v", rec)
	}
	if len(rig.hub.onChannel("schedule")) == 0 {
		t.Fatal("evaluation did not publish a schedule update")
	}
}

// ─── Re-evaluation ──────────────────────────────────────────────────────────

func TestEngine_ReEvaluateIdempotence(t *testing.T) {
	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	rig := newTestRig(t, pinned(now))
	ctx := context.Background()
	var scheduled, evented, inline atomic.Int32

	plan := &Plan{Entries: []Entry{
		{
			Trigger: mustTrigger(t, newDailyTrigger, `time: "23:00"`),
			Action:  countAction{"Scheduled", &scheduled, nil},
		},
		{
			Trigger: mustTrigger(t, newEventTrigger, "resource_id: btn-1\nevent_filter: short_release"),
			Action:  countAction{"Evented", &evented, nil},
		},
		{Trigger: immediateTrigger{}, Action: countAction{"Inline", &inline, nil}},
	}}
	eng, err := New(plan, rig.rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Evaluate(ctx); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	first := rig.sched.Snapshot()
	if len(first) != 1 || rig.events.handlerCount() != 1 || inline.Load() != 1 {
		t.Fatalf("after evaluate: jobs=%d handlers=%d inline=%d",
			len(first), rig.events.handlerCount(), inline.Load())
	}

	// No resets: bound triggers are left alone, inline re-fires.
	if err := eng.ReEvaluate(ctx, ReEvalRequest{}); err != nil {
		t.Fatalf("ReEvaluate: %v", err)
	}
	same := rig.sched.Snapshot()
	if len(same) != 1 || same[0].ID != first[0].ID {
		t.Fatalf("re-evaluation without reset disturbed the schedule: %+v vs %+v", first, same)
	}
	if rig.events.handlerCount() != 1 || inline.Load() != 2 {
		t.Fatalf("handlers=%d inline=%d, want 1 and 2", rig.events.handlerCount(), inline.Load())
	}

	// Full reset, twice: still exactly one job and one subscription.
	for i := 0; i < 2; i++ {
		if err := eng.ReEvaluate(ctx, ReEvalRequest{ResetSchedule: true, ResetEventListeners: true}); err != nil {
			t.Fatalf("ReEvaluate reset %d: %v", i+1, err)
		}
	}
	if jobs := rig.sched.Snapshot(); len(jobs) != 1 {
		t.Fatalf("%d jobs after repeated resets, want 1", len(jobs))
	}
	if rig.events.handlerCount() != 1 {
		t.Fatalf("%d handlers after repeated resets, want 1", rig.events.handlerCount())
	}
	if inline.Load() != 4 {
		t.Fatalf("inline fired %d times, want once per evaluation", inline.Load())
	}
	if scheduled.Load() != 0 || evented.Load() != 0 {
		t.Fatalf("resets caused spurious activations: scheduled=%d evented=%d",
			scheduled.Load(), evented.Load())
	}
}

func TestEngine_FailedUnbindSkipsRebind(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	boom := errors.New("boom")
	var n atomic.Int32

	stub := &stubTrigger{kind: "Stub", class: ClassSchedule, unbindErr: boom}
	plan := &Plan{Entries: []Entry{{Trigger: stub, Action: countAction{"Count", &n, nil}}}}
	eng, err := New(plan, rig.rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Evaluate(ctx); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	err = eng.ReEvaluate(ctx, ReEvalRequest{ResetSchedule: true})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want the unbind error surfaced", err)
	}
	// Still bound from the first pass: rebinding would double the trigger.
	if stub.binds.Load() != 1 {
		t.Fatalf("bound %d times, want 1", stub.binds.Load())
	}

	// Once unbinding works again the trigger is rebuilt normally.
	stub.unbindErr = nil
	if err := eng.ReEvaluate(ctx, ReEvalRequest{ResetSchedule: true}); err != nil {
		t.Fatalf("ReEvaluate: %v", err)
	}
	if stub.binds.Load() != 2 || stub.unbinds.Load() != 1 {
		t.Fatalf("binds=%d unbinds=%d, want 2 and 1", stub.binds.Load(), stub.unbinds.Load())
	}
}

func TestEngine_QueuedReEvaluation(t *testing.T) {
	rig := newTestRig(t, nil)
	var n atomic.Int32

	plan := &Plan{Entries: []Entry{
		{Trigger: immediateTrigger{}, Action: countAction{"Count", &n, nil}},
	}}
	eng, err := New(plan, rig.rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)

	eng.Enqueue(ReEvalRequest{Reason: reasonPlan})
	waitFor(t, 2*time.Second, func() bool { return n.Load() == 2 }, "queued re-evaluation did not run")

	waitFor(t, 2*time.Second, func() bool {
		for _, ev := range rig.tel.evaluationLog() {
			if ev.Reason == reasonPlan {
				return true
			}
		}
		return false
	}, "queued re-evaluation not in telemetry")
}

// ─── Shutdown ───────────────────────────────────────────────────────────────

func TestEngine_Close(t *testing.T) {
	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	rig := newTestRig(t, pinned(now))
	ctx := context.Background()
	var n atomic.Int32

	plan := &Plan{Entries: []Entry{
		{
			Trigger: mustTrigger(t, newDailyTrigger, `time: "23:00"`),
			Action:  countAction{"Count", &n, nil},
		},
		{
			Trigger: mustTrigger(t, newEventTrigger, "resource_id: btn-1\nevent_filter: short_release"),
			Action:  countAction{"Count", &n, nil},
		},
	}}
	eng, err := New(plan, rig.rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Evaluate(ctx); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if err := eng.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if jobs := rig.sched.Snapshot(); len(jobs) != 0 {
		t.Fatalf("close left %d jobs", len(jobs))
	}
	if rig.events.handlerCount() != 0 {
		t.Fatalf("close left %d handlers", rig.events.handlerCount())
	}

	if err := eng.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := eng.Evaluate(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("Evaluate after close: got %v, want ErrClosed", err)
	}
	if err := eng.ReEvaluate(ctx, ReEvalRequest{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("ReEvaluate after close: got %v, want ErrClosed", err)
	}
}

// ─── End to end ─────────────────────────────────────────────────────────────

func TestEngine_PlanFromYAML(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	rig.bridge.addScene(bridge.Scene{ID: "scene-1", Name: "Evening", GroupID: "room-1"})
	rig.bridge.setGroup(bridge.GroupState{ID: "room-1", AnyOn: true, AllOn: false})

	src := `
plan:
  - trigger:
      type: Immediately
    action:
      type: PopulateGeoVariables
      args: {lat: 52.37, lng: 4.9}
  - trigger:
      type: Immediately
    action:
      type: RunIf
      args:
        condition: {type: DBKeyNotSet, args: {db_key: current}}
        action:
          type: StoreSceneByName
          args: {name: Evening, db_key: current, activate: false}
  - trigger:
      type: Daily
      args: {time: "@sunset - 30 min", alias: evening, tags: [scene]}
    action:
      type: StoreSceneByName
      args: {name: Evening, db_key: current}
  - trigger:
      type: OnExternalEvent
      args: {resource_id: btn-1, event_filter: short_release}
    action:
      type: ToggleStoredScene
      args: {db_key: current}
`
	plan, err := LoadPlan([]byte(src))
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	eng, err := New(plan, rig.rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Evaluate(ctx); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// The startup pass populated anchors and seeded the current scene,
	// and the daily entry found its anchor in the same pass.
	if keys, _ := rig.store.Keys(ctx, defaultVariablesDB); len(keys) != 6 {
		t.Fatalf("got %d anchors, want 6", len(keys))
	}
	if got, _ := rig.store.Get(ctx, defaultSceneDB, "current"); got != "scene-1" {
		t.Fatalf("current scene %q, want scene-1", got)
	}
	if jobs := rig.sched.Snapshot(); len(jobs) != 1 || jobs[0].Alias != "evening" {
		t.Fatalf("jobs %+v, want the evening schedule", jobs)
	}

	// A button press toggles the room using the stored scene.
	rig.events.deliver(bridge.ButtonEvent{ResourceID: "btn-1", Event: "short_release"})
	waitFor(t, 2*time.Second, func() bool { return len(rig.bridge.groupCommands()) == 1 },
		"button press did not reach the bridge")
	call := rig.bridge.groupCommands()[0]
	if call.GroupID != "room-1" || !call.On || call.SceneID != "scene-1" {
		t.Fatalf("group command %+v, want room-1 on with scene-1", call)
	}

	if err := eng.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(rig.sched.Snapshot()) != 0 || rig.events.handlerCount() != 0 {
		t.Fatal("close left live bindings")
	}
}
