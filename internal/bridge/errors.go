package bridge

import "errors"

// Domain errors for the bridge package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, bridge.ErrSceneNotFound) {
//	    // recoverable: log and skip
//	}
var (
	// ErrSceneNotFound is returned when no catalogue scene matches.
	ErrSceneNotFound = errors.New("bridge: scene not found")

	// ErrGroupNotFound is returned when a group id is not in the catalogue.
	ErrGroupNotFound = errors.New("bridge: group not found")

	// ErrDeviceNotFound is returned when a device id is not in the catalogue.
	ErrDeviceNotFound = errors.New("bridge: device not found")

	// ErrInvalidPayload is returned when a state message cannot be decoded.
	ErrInvalidPayload = errors.New("bridge: invalid payload")
)
