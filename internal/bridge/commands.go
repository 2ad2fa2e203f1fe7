package bridge

import (
	"context"
	"encoding/json"
	"fmt"
)

// ActivateScene asks the hub to recall a scene.
func (b *Bridge) ActivateScene(ctx context.Context, sceneID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload := []byte(`{"action":"activate"}`)
	topic := b.topics.CommandScene(sceneID)
	if err := b.mqtt.Publish(topic, payload, commandQoS, false); err != nil {
		return fmt.Errorf("bridge: activate scene %s: %w", sceneID, err)
	}

	b.logger.Info("scene activation requested", "scene_id", sceneID)
	return nil
}

// SetGroupState switches every light in a group on or off. A non-empty
// sceneID is included so the hub recalls that scene while turning the
// group on instead of restoring the previous light state.
func (b *Bridge) SetGroupState(ctx context.Context, groupID string, on bool, sceneID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := map[string]any{"on": on}
	if sceneID != "" {
		cmd["scene"] = sceneID
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("bridge: encode group command: %w", err)
	}
	topic := b.topics.CommandGroup(groupID)
	if err := b.mqtt.Publish(topic, payload, commandQoS, false); err != nil {
		return fmt.Errorf("bridge: set group %s: %w", groupID, err)
	}

	b.logger.Info("group switch requested", "group_id", groupID, "on", on, "scene_id", sceneID)
	return nil
}

// SetLightState pushes a partial state change to one light.
func (b *Bridge) SetLightState(ctx context.Context, lightID string, patch LightPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("bridge: encode light command: %w", err)
	}
	topic := b.topics.CommandResource("light", lightID)
	if err := b.mqtt.Publish(topic, payload, commandQoS, false); err != nil {
		return fmt.Errorf("bridge: set light %s: %w", lightID, err)
	}

	b.logger.Debug("light update requested", "light_id", lightID)
	return nil
}

// UpdateResource sends an arbitrary update to any hub resource. The
// payload is forwarded verbatim; the hub validates it against the
// resource kind.
func (b *Bridge) UpdateResource(ctx context.Context, kind, resourceID string, payload map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bridge: encode %s update: %w", kind, err)
	}
	topic := b.topics.CommandResource(kind, resourceID)
	if err := b.mqtt.Publish(topic, raw, commandQoS, false); err != nil {
		return fmt.Errorf("bridge: update %s %s: %w", kind, resourceID, err)
	}

	b.logger.Info("resource update requested", "kind", kind, "resource_id", resourceID)
	return nil
}
