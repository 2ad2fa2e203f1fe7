package schedule

import "errors"

// Domain errors for the schedule package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, schedule.ErrNotFound) {
//	    // recoverable: log and continue
//	}
var (
	// ErrNotFound is returned when no job matches a query or id.
	ErrNotFound = errors.New("schedule: no matching job")

	// ErrInvalidJob is returned when a job registration is malformed.
	ErrInvalidJob = errors.New("schedule: invalid job")

	// ErrClosed is returned when registering on a closed scheduler.
	ErrClosed = errors.New("schedule: scheduler closed")

	// ErrUnknownStrategy is returned for an unrecognised closest-job strategy.
	ErrUnknownStrategy = errors.New("schedule: unknown strategy")
)
