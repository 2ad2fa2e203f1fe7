package bridge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// State message handlers. The resource id comes from the topic's last
// segment; an empty retained payload is the bridge's tombstone for a
// deleted resource.

func (b *Bridge) handleSceneState(topic string, payload []byte) error {
	id := lastSegment(topic)
	if len(payload) == 0 {
		b.mu.Lock()
		delete(b.scenes, id)
		b.mu.Unlock()
		b.logger.Debug("scene removed from catalogue", "scene_id", id)
		return nil
	}

	var scene Scene
	if err := json.Unmarshal(payload, &scene); err != nil {
		return fmt.Errorf("%w: scene %s: %w", ErrInvalidPayload, id, err)
	}
	scene.ID = id

	b.mu.Lock()
	b.scenes[id] = &scene
	b.mu.Unlock()

	b.logger.Debug("scene cached", "scene_id", id, "name", scene.Name)
	return nil
}

func (b *Bridge) handleGroupState(topic string, payload []byte) error {
	id := lastSegment(topic)
	if len(payload) == 0 {
		b.mu.Lock()
		delete(b.groups, id)
		b.mu.Unlock()
		return nil
	}

	var group GroupState
	if err := json.Unmarshal(payload, &group); err != nil {
		return fmt.Errorf("%w: group %s: %w", ErrInvalidPayload, id, err)
	}
	group.ID = id

	b.mu.Lock()
	b.groups[id] = &group
	b.mu.Unlock()
	return nil
}

func (b *Bridge) handleDeviceState(topic string, payload []byte) error {
	id := lastSegment(topic)
	if len(payload) == 0 {
		b.mu.Lock()
		delete(b.devices, id)
		b.mu.Unlock()
		return nil
	}

	var light LightState
	if err := json.Unmarshal(payload, &light); err != nil {
		return fmt.Errorf("%w: device %s: %w", ErrInvalidPayload, id, err)
	}
	light.ID = id

	b.mu.Lock()
	b.devices[id] = &light
	b.mu.Unlock()
	return nil
}

// GetScene returns the catalogue entry for a scene id.
func (b *Bridge) GetScene(id string) (Scene, error) {
	b.mu.RLock()
	scene, ok := b.scenes[id]
	b.mu.RUnlock()
	if !ok {
		return Scene{}, fmt.Errorf("%w: %s", ErrSceneNotFound, id)
	}
	return scene.clone(), nil
}

// FindSceneByName returns the scene with an exact name match. A
// non-empty groupID restricts the search to scenes belonging to that
// group. When several scenes share the name the lexically smallest id
// wins, so repeated lookups are stable.
func (b *Bridge) FindSceneByName(name, groupID string) (Scene, error) {
	b.mu.RLock()
	var ids []string
	for id, s := range b.scenes {
		if s.Name != name {
			continue
		}
		if groupID != "" && s.GroupID != groupID {
			continue
		}
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	if len(ids) == 0 {
		return Scene{}, fmt.Errorf("%w: name %q group %q", ErrSceneNotFound, name, groupID)
	}
	sort.Strings(ids)
	return b.GetScene(ids[0])
}

// Scenes returns all catalogue scenes ordered by name.
func (b *Bridge) Scenes() []Scene {
	b.mu.RLock()
	out := make([]Scene, 0, len(b.scenes))
	for _, s := range b.scenes {
		out = append(out, s.clone())
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// GetGroup returns the live state of a group.
func (b *Bridge) GetGroup(id string) (GroupState, error) {
	b.mu.RLock()
	group, ok := b.groups[id]
	b.mu.RUnlock()
	if !ok {
		return GroupState{}, fmt.Errorf("%w: %s", ErrGroupNotFound, id)
	}
	return *group, nil
}

// GetDevice returns the live state of a single light.
func (b *Bridge) GetDevice(id string) (LightState, error) {
	b.mu.RLock()
	light, ok := b.devices[id]
	b.mu.RUnlock()
	if !ok {
		return LightState{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return light.clone(), nil
}

func lastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
