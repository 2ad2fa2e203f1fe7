package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heliplan/heliplan-core/internal/schedule"
)

// ─── PrintSchedule ──────────────────────────────────────────────────────────

type printScheduleArgs struct {
	Periodic Duration `yaml:"periodic"`
}

// printScheduleAction logs the live schedule as a rendered table. With a
// periodic interval it keeps re-arming itself through the scheduler, so
// one plan entry yields a running schedule ticker.
type printScheduleAction struct {
	periodic time.Duration
}

func newPrintSchedule(args yaml.Node) (Action, error) {
	var a printScheduleArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Periodic < 0 {
		return nil, fmt.Errorf("%w: PrintSchedule periodic must not be negative", ErrConfig)
	}
	return &printScheduleAction{periodic: time.Duration(a.Periodic)}, nil
}

func (a *printScheduleAction) Kind() string { return "PrintSchedule" }

func (a *printScheduleAction) Execute(ctx context.Context, rt *Runtime) error {
	jobs := rt.Scheduler.Snapshot()
	rt.Logger.Info("current schedule\n"+schedule.RenderTable(jobs, rt.Now()), "jobs", len(jobs))

	if a.periodic <= 0 {
		return nil
	}
	_, err := rt.Scheduler.Register(schedule.Job{
		DueAt: rt.Now().Add(a.periodic),
		Alias: "print_schedule",
		Run: func(ctx context.Context) {
			if err := a.Execute(ctx, rt); err != nil {
				rt.Logger.Error("periodic schedule print failed", "error", err)
			}
		},
	})
	if err != nil && !errors.Is(err, schedule.ErrClosed) {
		return fmt.Errorf("re-arming schedule print: %w", err)
	}
	return nil
}

// ─── RunClosestSchedule ─────────────────────────────────────────────────────

type runClosestArgs struct {
	Tags         []string `yaml:"tags"`
	Strategy     string   `yaml:"strategy"`
	AllowOverlap bool     `yaml:"allow_overlap"`
}

// runClosestAction fires the schedule entry nearest to "now" without
// waiting for its due time. The catch-up move after a restart: whatever
// scene change should already be in effect gets applied immediately.
type runClosestAction struct {
	tags         []string
	strategy     schedule.Strategy
	allowOverlap bool
}

func newRunClosest(args yaml.Node) (Action, error) {
	var a runClosestArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Strategy == "" {
		return nil, fmt.Errorf("%w: RunClosestSchedule requires a strategy", ErrConfig)
	}
	strategy, err := schedule.ParseStrategy(strings.ToLower(a.Strategy))
	if err != nil {
		return nil, fmt.Errorf("%w: RunClosestSchedule strategy %q", ErrConfig, a.Strategy)
	}
	return &runClosestAction{tags: a.Tags, strategy: strategy, allowOverlap: a.AllowOverlap}, nil
}

func (a *runClosestAction) Kind() string { return "RunClosestSchedule" }

func (a *runClosestAction) Execute(ctx context.Context, rt *Runtime) error {
	job, err := rt.Scheduler.Closest(rt.Now(), a.tags, a.strategy, a.allowOverlap)
	if errors.Is(err, schedule.ErrNotFound) {
		rt.Logger.Warn("no schedule entry to run",
			"tags", strings.Join(a.tags, ","),
			"strategy", string(a.strategy),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("selecting closest schedule entry: %w", err)
	}

	rt.Logger.Info("running closest schedule entry",
		"job_id", job.ID,
		"alias", job.Alias,
		"due_at", job.DueAt.Format(time.RFC3339),
	)
	if err := rt.Scheduler.RunJob(job.ID); err != nil {
		return fmt.Errorf("running job %q: %w", job.ID, err)
	}
	return nil
}

// ─── ReEvaluatePlan ─────────────────────────────────────────────────────────

type reEvaluateArgs struct {
	ResetSchedule       bool `yaml:"reset_schedule"`
	ResetEventListeners bool `yaml:"reset_event_listeners"`
}

type reEvaluateAction struct {
	resetSchedule bool
	resetEvents   bool
}

func newReEvaluate(args yaml.Node) (Action, error) {
	var a reEvaluateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return &reEvaluateAction{resetSchedule: a.ResetSchedule, resetEvents: a.ResetEventListeners}, nil
}

func (a *reEvaluateAction) Kind() string { return "ReEvaluatePlan" }

func (a *reEvaluateAction) Execute(ctx context.Context, rt *Runtime) error {
	if rt.reevaluate == nil {
		return errors.New("re-evaluation is not available outside a running engine")
	}
	rt.reevaluate(ReEvalRequest{
		ResetSchedule:       a.resetSchedule,
		ResetEventListeners: a.resetEvents,
		Reason:              reasonPlan,
	})
	rt.Logger.Info("plan re-evaluation queued",
		"reset_schedule", a.resetSchedule,
		"reset_event_listeners", a.resetEvents,
	)
	return nil
}
