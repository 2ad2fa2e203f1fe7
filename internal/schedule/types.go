package schedule

import (
	"context"
	"time"
)

// Strategy selects which job a closest-job query should return relative
// to the reference instant.
type Strategy string

const (
	// StrategyPrev returns the latest job at or before the reference.
	StrategyPrev Strategy = "prev"

	// StrategyNext returns the earliest job strictly after the reference.
	StrategyNext Strategy = "next"

	// StrategyPrevNext prefers the latest past job and falls back to the
	// earliest future job when nothing has fired yet today.
	StrategyPrevNext Strategy = "prev_next"
)

// ParseStrategy converts a plan-file string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyPrev, StrategyNext, StrategyPrevNext:
		return Strategy(s), nil
	default:
		return "", ErrUnknownStrategy
	}
}

// Job describes a registration request. DueAt is an absolute instant;
// the scheduler never reinterprets it against a calendar.
type Job struct {
	// DueAt is the absolute instant the job fires. Required.
	DueAt time.Time

	// Tags label the job for group cancellation and filtered queries.
	Tags []string

	// Alias is an optional human-readable name. Duplicate aliases are
	// suffixed (_2, _3, ...) so every live job stays addressable.
	Alias string

	// PrevRun records when an earlier incarnation of this job last fired.
	// Recurring triggers pass it forward on re-registration so schedule
	// listings can show run history. Zero when there is none.
	PrevRun time.Time

	// Run is the payload invoked when the job fires. Required.
	Run func(ctx context.Context)
}

// JobInfo is a read-only snapshot of a live job.
type JobInfo struct {
	ID      string
	Alias   string
	Tags    []string
	DueAt   time.Time
	PrevRun time.Time
	Created time.Time
}

// Logger is the minimal logging interface the scheduler needs.
// It matches the logging package's structured key-value style.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}
