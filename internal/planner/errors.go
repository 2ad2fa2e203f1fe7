package planner

import "errors"

// Domain errors for the planner package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, planner.ErrNoStoredScene) {
//	    // recoverable: log and continue
//	}
var (
	// ErrConfig is returned for a malformed plan: unknown trigger,
	// action or condition type, or missing/invalid arguments. Fatal at
	// plan construction, never raised at fire time.
	ErrConfig = errors.New("planner: invalid plan")

	// ErrNoStoredScene is returned when a scene-dependent action runs
	// before any scene id was stored under its key. Recoverable; the
	// engine logs it and performs no bridge call.
	ErrNoStoredScene = errors.New("planner: no stored scene")

	// ErrAlreadyBound is returned when binding a trigger that is
	// already bound.
	ErrAlreadyBound = errors.New("planner: trigger already bound")

	// ErrClosed is returned when evaluating through an engine that has
	// been closed.
	ErrClosed = errors.New("planner: engine closed")
)
