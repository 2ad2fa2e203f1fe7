package planner

import (
	"context"
	"time"

	"github.com/heliplan/heliplan-core/internal/astro"
	"github.com/heliplan/heliplan-core/internal/bridge"
	"github.com/heliplan/heliplan-core/internal/schedule"
	"github.com/heliplan/heliplan-core/internal/store"
)

// VariableStore is the namespaced state consumed by triggers and
// actions: plain get/set/flush plus the cache-or-compute primitive.
// Satisfied by *store.Computed over any backend.
type VariableStore interface {
	store.Store
	GetOrCompute(ctx context.Context, ns, key string, compute func(ctx context.Context) (string, error)) (string, error)
}

// BridgeClient is the slice of the device bridge the planner calls.
type BridgeClient interface {
	// FindSceneByName resolves a scene by display name, optionally
	// scoped to a group.
	FindSceneByName(name, groupID string) (bridge.Scene, error)

	// GetScene returns a catalogue scene by id.
	GetScene(id string) (bridge.Scene, error)

	// GetGroup returns the live state of a group.
	GetGroup(id string) (bridge.GroupState, error)

	// ActivateScene asks the hub to recall a scene.
	ActivateScene(ctx context.Context, sceneID string) error

	// SetGroupState switches a group on or off, optionally recalling a
	// scene while turning on.
	SetGroupState(ctx context.Context, groupID string, on bool, sceneID string) error

	// UpdateResource forwards an arbitrary state update to one resource.
	UpdateResource(ctx context.Context, kind, resourceID string, payload map[string]any) error

	// SyncScene pushes a stored scene's target states to any lights
	// that have drifted from it. Returns the number updated.
	SyncScene(ctx context.Context, sceneID string) (int, error)
}

// EventSource delivers hardware button events. The returned function
// removes the registration again.
type EventSource interface {
	OnButtonEvent(handler bridge.ButtonHandler) (func(), error)
}

// GeoResolver turns place names or raw coordinates into site locations.
type GeoResolver interface {
	ResolveName(ctx context.Context, name string) (astro.Location, error)
	ResolveCoords(lat, lng float64) astro.Location
}

// Telemetry receives activation and evaluation measurements. Satisfied
// by the influxdb client; defaults to a no-op sink.
type Telemetry interface {
	WriteActivation(trigger string, entry int, action string, duration time.Duration, err error)
	WriteEvaluation(reason string, entries, failed int, duration time.Duration)
}

// Broadcaster pushes live engine events to WebSocket subscribers.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger defines the logging interface used by the planner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Runtime is the engine context: every collaborator a trigger or action
// touches, constructed once in main and passed explicitly. There is no
// ambient global state.
type Runtime struct {
	Store     VariableStore
	Scheduler *schedule.Scheduler
	Bridge    BridgeClient
	Geo       GeoResolver
	Events    EventSource
	Logger    Logger
	Telemetry Telemetry
	Hub       Broadcaster

	// Now supplies the engine clock, already localized to the site
	// timezone. Defaults to time.Now; tests pin it.
	Now func() time.Time

	// reevaluate queues a rebuild request; set by the engine so the
	// ReEvaluatePlan action never calls back into a locked engine.
	reevaluate func(req ReEvalRequest)
}

// withDefaults fills the optional collaborators with no-ops.
func (rt Runtime) withDefaults() Runtime {
	if rt.Logger == nil {
		rt.Logger = noopLogger{}
	}
	if rt.Telemetry == nil {
		rt.Telemetry = noopTelemetry{}
	}
	if rt.Hub == nil {
		rt.Hub = noopBroadcaster{}
	}
	if rt.Now == nil {
		rt.Now = time.Now
	}
	return rt
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopTelemetry struct{}

func (noopTelemetry) WriteActivation(string, int, string, time.Duration, error) {}
func (noopTelemetry) WriteEvaluation(string, int, int, time.Duration)           {}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, any) {}
