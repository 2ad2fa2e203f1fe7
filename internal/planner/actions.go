package planner

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Action is one executable operation of a plan entry. Actions are
// stateless beyond their arguments; every collaborator comes in through
// the Runtime at execution time.
//
// Errors are recoverable at the activation boundary: the engine logs
// and records them without tearing anything down. Inside a Sequence a
// child error aborts the remaining children.
type Action interface {
	// Kind returns the plan-file type name.
	Kind() string

	// Execute performs the action.
	Execute(ctx context.Context, rt *Runtime) error
}

// ─── Sequence ───────────────────────────────────────────────────────────────

type sequenceAction struct {
	children []Action
}

// newSequence flattens nested sequences into one level; other composite
// actions (Delayed, RunIf) are kept intact.
func newSequence(children []Action) Action {
	flat := make([]Action, 0, len(children))
	for _, c := range children {
		if inner, ok := c.(*sequenceAction); ok {
			flat = append(flat, inner.children...)
			continue
		}
		flat = append(flat, c)
	}
	return &sequenceAction{children: flat}
}

func newSequenceFromArgs(args yaml.Node) (Action, error) {
	if args.IsZero() {
		return nil, fmt.Errorf("%w: Sequence requires a list of actions", ErrConfig)
	}
	var specs []NodeSpec
	if err := args.Decode(&specs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	children := make([]Action, 0, len(specs))
	for _, spec := range specs {
		child, err := buildAction(spec)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return newSequence(children), nil
}

func (a *sequenceAction) Kind() string { return "Sequence" }

func (a *sequenceAction) Execute(ctx context.Context, rt *Runtime) error {
	for i, child := range a.children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := child.Execute(ctx, rt); err != nil {
			return fmt.Errorf("sequence step %d (%s): %w", i+1, child.Kind(), err)
		}
	}
	return nil
}

// ─── Delayed ────────────────────────────────────────────────────────────────

type delayedArgs struct {
	Delay  Duration  `yaml:"delay"`
	Action yaml.Node `yaml:"action"`
}

type delayedAction struct {
	delay time.Duration
	inner Action
}

func newDelayedFromArgs(args yaml.Node) (Action, error) {
	var a delayedArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Delay <= 0 {
		return nil, fmt.Errorf("%w: Delayed requires a positive delay", ErrConfig)
	}
	inner, err := buildActionNode(a.Action)
	if err != nil {
		return nil, err
	}
	return &delayedAction{delay: time.Duration(a.Delay), inner: inner}, nil
}

func (a *delayedAction) Kind() string { return "Delayed" }

func (a *delayedAction) Execute(ctx context.Context, rt *Runtime) error {
	rt.Logger.Info("delaying action", "delay", a.delay.String(), "action", a.inner.Kind())

	timer := time.NewTimer(a.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return fmt.Errorf("delayed %s abandoned: %w", a.inner.Kind(), ctx.Err())
	}
	return a.inner.Execute(ctx, rt)
}

// ─── RunIf ──────────────────────────────────────────────────────────────────

type runIfArgs struct {
	Condition NodeSpec  `yaml:"condition"`
	Action    yaml.Node `yaml:"action"`
}

type runIfAction struct {
	cond  Condition
	inner Action
}

func newRunIfFromArgs(args yaml.Node) (Action, error) {
	var a runIfArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	cond, err := buildCondition(a.Condition)
	if err != nil {
		return nil, err
	}
	inner, err := buildActionNode(a.Action)
	if err != nil {
		return nil, err
	}
	return &runIfAction{cond: cond, inner: inner}, nil
}

func (a *runIfAction) Kind() string { return "RunIf" }

func (a *runIfAction) Execute(ctx context.Context, rt *Runtime) error {
	ok, err := a.cond.Holds(ctx, rt)
	if err != nil {
		return fmt.Errorf("runif condition: %w", err)
	}
	if !ok {
		rt.Logger.Info("condition not met, action skipped", "action", a.inner.Kind())
		return nil
	}
	return a.inner.Execute(ctx, rt)
}
