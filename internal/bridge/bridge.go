// Package bridge mirrors the device hub over MQTT: a read cache of the
// hub's scenes, groups and lights fed by retained state topics, plus
// command publishing for scene activation, group switching and resource
// updates, and the hardware button event stream.
//
// The bridge process fronting the hub owns the actual device protocol;
// this package only speaks the heliplan topic contract, so the planner
// core never blocks on hub round-trips. Catalogue queries answer from
// the cache, commands are fire-and-forget at QoS 1.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/heliplan/heliplan-core/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of the MQTT client the bridge needs.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// commandQoS is the QoS level for command publishes. At-least-once:
// a lost activate command is worse than a duplicated one.
const commandQoS = 1

// Bridge is the planner's view of the device hub.
//
// All public methods are thread-safe. The catalogue maps are replaced
// entry-wise by the state handlers, never mutated in place, so query
// methods can hand out copies without holding the lock for long.
type Bridge struct {
	mqtt   MQTTClient
	topics mqtt.Topics
	logger Logger

	mu      sync.RWMutex
	scenes  map[string]*Scene
	groups  map[string]*GroupState
	devices map[string]*LightState

	buttonMu     sync.Mutex
	buttonSubs   map[int]ButtonHandler
	buttonNextID int
	buttonWired  bool
}

// New creates a bridge client on top of a connected MQTT client.
// Call Start to begin mirroring the hub catalogue.
func New(client MQTTClient) *Bridge {
	return &Bridge{
		mqtt:       client,
		logger:     noopLogger{},
		scenes:     make(map[string]*Scene),
		groups:     make(map[string]*GroupState),
		devices:    make(map[string]*LightState),
		buttonSubs: make(map[int]ButtonHandler),
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Start subscribes to the retained state topics. The broker replays
// retained messages on subscribe, so the catalogue warms up immediately
// after connecting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subs := []struct {
		pattern string
		handler mqtt.MessageHandler
	}{
		{b.topics.AllSceneStates(), b.handleSceneState},
		{b.topics.AllGroupStates(), b.handleGroupState},
		{b.topics.AllDeviceStates(), b.handleDeviceState},
	}
	for _, s := range subs {
		if err := b.mqtt.Subscribe(s.pattern, commandQoS, s.handler); err != nil {
			return fmt.Errorf("bridge: subscribe %s: %w", s.pattern, err)
		}
	}

	b.logger.Info("bridge catalogue subscriptions established")
	return nil
}

// Stats returns catalogue sizes for health reporting.
type Stats struct {
	Scenes  int `json:"scenes"`
	Groups  int `json:"groups"`
	Devices int `json:"devices"`
}

// GetStats returns current catalogue statistics.
func (b *Bridge) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		Scenes:  len(b.scenes),
		Groups:  len(b.groups),
		Devices: len(b.devices),
	}
}
