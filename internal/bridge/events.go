package bridge

import (
	"encoding/json"
	"fmt"
)

// ButtonHandler receives hardware button events. Handlers run on the
// MQTT client's delivery goroutine and must not block for long.
type ButtonHandler func(ev ButtonEvent)

// OnButtonEvent registers a handler for every hardware button event and
// returns a function that removes it again. The MQTT client keeps one
// handler per topic pattern, so the underlying subscription is created
// once on first registration and shared; fan-out happens here.
func (b *Bridge) OnButtonEvent(handler ButtonHandler) (func(), error) {
	b.buttonMu.Lock()
	defer b.buttonMu.Unlock()

	if !b.buttonWired {
		if err := b.mqtt.Subscribe(b.topics.AllButtonEvents(), commandQoS, b.dispatchButtonEvent); err != nil {
			return nil, fmt.Errorf("bridge: subscribe button events: %w", err)
		}
		b.buttonWired = true
	}

	id := b.buttonNextID
	b.buttonNextID++
	b.buttonSubs[id] = handler

	return func() {
		b.buttonMu.Lock()
		defer b.buttonMu.Unlock()
		delete(b.buttonSubs, id)
	}, nil
}

func (b *Bridge) dispatchButtonEvent(topic string, payload []byte) error {
	var ev ButtonEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: button event: %w", ErrInvalidPayload, err)
	}
	if ev.ResourceID == "" {
		ev.ResourceID = lastSegment(topic)
	}

	b.buttonMu.Lock()
	handlers := make([]ButtonHandler, 0, len(b.buttonSubs))
	for _, h := range b.buttonSubs {
		handlers = append(handlers, h)
	}
	b.buttonMu.Unlock()

	b.logger.Debug("button event", "resource_id", ev.ResourceID, "event", ev.Event, "handlers", len(handlers))
	for _, h := range handlers {
		h(ev)
	}
	return nil
}
