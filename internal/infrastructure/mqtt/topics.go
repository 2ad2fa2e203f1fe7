package mqtt

import "fmt"

// Topic prefixes for the heliplan MQTT namespace.
//
// The bridge that fronts the device hub subscribes to command topics and
// publishes retained state topics, so late subscribers always see the
// current catalogue. Hardware events (dimmer switches, buttons) arrive
// on event topics.
const (
	// TopicPrefix is the base for all heliplan topics.
	TopicPrefix = "heliplan"

	// TopicPrefixSystem is the base for process-level topics (LWT, status).
	TopicPrefixSystem = "heliplan/system"
)

// Topics provides builders for heliplan MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	cmd := topics.CommandScene("scene-01")
//	// Returns: "heliplan/command/scene/scene-01"
type Topics struct{}

// =============================================================================
// Command Topics (core -> bridge)
// =============================================================================

// CommandScene returns the topic for scene activation commands.
//
// Example: heliplan/command/scene/scene-01
func (Topics) CommandScene(sceneID string) string {
	return fmt.Sprintf("%s/command/scene/%s", TopicPrefix, sceneID)
}

// CommandGroup returns the topic for group state commands.
//
// Example: heliplan/command/group/living-room
func (Topics) CommandGroup(groupID string) string {
	return fmt.Sprintf("%s/command/group/%s", TopicPrefix, groupID)
}

// CommandResource returns the topic for arbitrary resource updates.
//
// Example: heliplan/command/light/light-kitchen
func (Topics) CommandResource(kind, resourceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, kind, resourceID)
}

// =============================================================================
// State Topics (bridge -> core, retained)
// =============================================================================

// StateScene returns the topic carrying a scene's catalogue entry.
//
// Example: heliplan/state/scene/scene-01
func (Topics) StateScene(sceneID string) string {
	return fmt.Sprintf("%s/state/scene/%s", TopicPrefix, sceneID)
}

// StateGroup returns the topic carrying a group's current state.
//
// Example: heliplan/state/group/living-room
func (Topics) StateGroup(groupID string) string {
	return fmt.Sprintf("%s/state/group/%s", TopicPrefix, groupID)
}

// StateDevice returns the topic carrying a device's current state.
//
// Example: heliplan/state/device/light-kitchen
func (Topics) StateDevice(deviceID string) string {
	return fmt.Sprintf("%s/state/device/%s", TopicPrefix, deviceID)
}

// =============================================================================
// Event Topics (bridge -> core)
// =============================================================================

// EventButton returns the topic for hardware button events.
//
// Example: heliplan/event/button/dimmer-hall
func (Topics) EventButton(resourceID string) string {
	return fmt.Sprintf("%s/event/button/%s", TopicPrefix, resourceID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the process status topic (also used for the LWT).
//
// Example: heliplan/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllStates returns a pattern matching every retained state topic.
//
// Pattern: heliplan/state/+/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllSceneStates returns a pattern matching all scene catalogue entries.
//
// Pattern: heliplan/state/scene/+
func (Topics) AllSceneStates() string {
	return fmt.Sprintf("%s/state/scene/+", TopicPrefix)
}

// AllGroupStates returns a pattern matching all group states.
//
// Pattern: heliplan/state/group/+
func (Topics) AllGroupStates() string {
	return fmt.Sprintf("%s/state/group/+", TopicPrefix)
}

// AllDeviceStates returns a pattern matching all device states.
//
// Pattern: heliplan/state/device/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/device/+", TopicPrefix)
}

// AllButtonEvents returns a pattern matching all hardware button events.
//
// Pattern: heliplan/event/button/+
func (Topics) AllButtonEvents() string {
	return fmt.Sprintf("%s/event/button/+", TopicPrefix)
}

// AllTopics returns a pattern matching the whole heliplan namespace.
// Use with caution - this receives ALL traffic.
//
// Pattern: heliplan/#
func (Topics) AllTopics() string {
	return "heliplan/#"
}
