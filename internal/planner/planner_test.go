package planner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heliplan/heliplan-core/internal/astro"
	"github.com/heliplan/heliplan-core/internal/bridge"
	"github.com/heliplan/heliplan-core/internal/schedule"
	"github.com/heliplan/heliplan-core/internal/store"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

type groupCall struct {
	GroupID string
	On      bool
	SceneID string
}

type updateCall struct {
	Kind    string
	ID      string
	Payload map[string]any
}

// mockBridge is an in-memory device bridge: a fixed catalogue plus a
// recording of every command the planner issues.
type mockBridge struct {
	mu     sync.Mutex
	scenes map[string]bridge.Scene
	groups map[string]bridge.GroupState

	activated  []string
	groupCalls []groupCall
	updates    []updateCall
	synced     []string
	syncResult int

	failWith error // when set, every command returns it
}

func newMockBridge() *mockBridge {
	return &mockBridge{
		scenes: make(map[string]bridge.Scene),
		groups: make(map[string]bridge.GroupState),
	}
}

func (m *mockBridge) addScene(s bridge.Scene) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenes[s.ID] = s
}

func (m *mockBridge) setGroup(g bridge.GroupState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = g
}

func (m *mockBridge) FindSceneByName(name, groupID string) (bridge.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.scenes {
		if s.Name == name && (groupID == "" || s.GroupID == groupID) {
			return s, nil
		}
	}
	return bridge.Scene{}, fmt.Errorf("%w: %q", bridge.ErrSceneNotFound, name)
}

func (m *mockBridge) GetScene(id string) (bridge.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenes[id]
	if !ok {
		return bridge.Scene{}, fmt.Errorf("%w: %q", bridge.ErrSceneNotFound, id)
	}
	return s, nil
}

func (m *mockBridge) GetGroup(id string) (bridge.GroupState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return bridge.GroupState{}, fmt.Errorf("%w: %q", bridge.ErrGroupNotFound, id)
	}
	return g, nil
}

func (m *mockBridge) ActivateScene(_ context.Context, sceneID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.activated = append(m.activated, sceneID)
	return nil
}

func (m *mockBridge) SetGroupState(_ context.Context, groupID string, on bool, sceneID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.groupCalls = append(m.groupCalls, groupCall{GroupID: groupID, On: on, SceneID: sceneID})
	return nil
}

func (m *mockBridge) UpdateResource(_ context.Context, kind, resourceID string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.updates = append(m.updates, updateCall{Kind: kind, ID: resourceID, Payload: payload})
	return nil
}

func (m *mockBridge) SyncScene(_ context.Context, sceneID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.synced = append(m.synced, sceneID)
	return m.syncResult, nil
}

func (m *mockBridge) activatedScenes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.activated...)
}

func (m *mockBridge) groupCommands() []groupCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]groupCall(nil), m.groupCalls...)
}

func (m *mockBridge) updateCommands() []updateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]updateCall(nil), m.updates...)
}

func (m *mockBridge) syncedScenes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.synced...)
}

// mockGeo resolves every name to a fixed site and counts geocoder hits,
// so tests can prove the cache short-circuits the network.
type mockGeo struct {
	mu        sync.Mutex
	nameCalls int
	failWith  error
}

func (m *mockGeo) ResolveName(_ context.Context, name string) (astro.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nameCalls++
	if m.failWith != nil {
		return astro.Location{}, m.failWith
	}
	return astro.Location{Name: name, Latitude: 52.37, Longitude: 4.9, Timezone: "UTC"}, nil
}

func (m *mockGeo) ResolveCoords(lat, lng float64) astro.Location {
	return astro.Location{Latitude: lat, Longitude: lng, Timezone: "UTC"}
}

func (m *mockGeo) geocodeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nameCalls
}

// mockEvents is an in-process button event stream.
type mockEvents struct {
	mu       sync.Mutex
	handlers map[int]bridge.ButtonHandler
	nextID   int
	failWith error
}

func newMockEvents() *mockEvents {
	return &mockEvents{handlers: make(map[int]bridge.ButtonHandler)}
}

func (m *mockEvents) OnButtonEvent(handler bridge.ButtonHandler) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	id := m.nextID
	m.nextID++
	m.handlers[id] = handler
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers, id)
	}, nil
}

func (m *mockEvents) deliver(ev bridge.ButtonEvent) {
	m.mu.Lock()
	handlers := make([]bridge.ButtonHandler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (m *mockEvents) handlerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

type activationSample struct {
	Trigger string
	Entry   int
	Action  string
	Err     error
}

type evaluationSample struct {
	Reason  string
	Entries int
	Failed  int
}

type testTelemetry struct {
	mu          sync.Mutex
	activations []activationSample
	evaluations []evaluationSample
}

func (t *testTelemetry) WriteActivation(trigger string, entry int, action string, _ time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activations = append(t.activations, activationSample{Trigger: trigger, Entry: entry, Action: action, Err: err})
}

func (t *testTelemetry) WriteEvaluation(reason string, entries, failed int, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evaluations = append(t.evaluations, evaluationSample{Reason: reason, Entries: entries, Failed: failed})
}

func (t *testTelemetry) activationLog() []activationSample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]activationSample(nil), t.activations...)
}

func (t *testTelemetry) evaluationLog() []evaluationSample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]evaluationSample(nil), t.evaluations...)
}

type hubEvent struct {
	Channel string
	Payload any
}

type testHub struct {
	mu     sync.Mutex
	events []hubEvent
}

func (h *testHub) Broadcast(channel string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{Channel: channel, Payload: payload})
}

func (h *testHub) onChannel(channel string) []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []any
	for _, ev := range h.events {
		if ev.Channel == channel {
			out = append(out, ev.Payload)
		}
	}
	return out
}

// ─── Harness ────────────────────────────────────────────────────────────────

// testRig wires a Runtime from mocks. A nil clock uses real time, for
// tests that want jobs to actually fire; a pinned clock freezes both
// the planner and the scheduler.
type testRig struct {
	rt     Runtime
	store  VariableStore
	sched  *schedule.Scheduler
	bridge *mockBridge
	geo    *mockGeo
	events *mockEvents
	tel    *testTelemetry
	hub    *testHub
}

func newTestRig(t *testing.T, now func() time.Time) *testRig {
	t.Helper()
	if now == nil {
		now = time.Now
	}

	sched := schedule.New(schedule.Options{Now: now})
	sched.Start(context.Background())
	t.Cleanup(sched.Close)

	rig := &testRig{
		store:  store.NewComputed(store.NewMemory()),
		sched:  sched,
		bridge: newMockBridge(),
		geo:    &mockGeo{},
		events: newMockEvents(),
		tel:    &testTelemetry{},
		hub:    &testHub{},
	}
	rig.rt = Runtime{
		Store:     rig.store,
		Scheduler: rig.sched,
		Bridge:    rig.bridge,
		Geo:       rig.geo,
		Events:    rig.events,
		Telemetry: rig.tel,
		Hub:       rig.hub,
		Now:       now,
	}.withDefaults()
	return rig
}

// pinned returns a frozen clock.
func pinned(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// yamlArgs parses a YAML fragment into the args node a constructor
// receives. Empty input yields the zero node, i.e. absent args.
func yamlArgs(t *testing.T, src string) yaml.Node {
	t.Helper()
	if src == "" {
		return yaml.Node{}
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	return *doc.Content[0]
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// setVar stores a value in the default anchor namespace.
func setVar(t *testing.T, rig *testRig, key, value string) {
	t.Helper()
	if err := rig.store.Set(context.Background(), defaultVariablesDB, key, value); err != nil {
		t.Fatalf("Set %s: %v", key, err)
	}
}
