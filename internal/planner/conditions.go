package planner

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/heliplan/heliplan-core/internal/store"
)

// Condition gates a RunIf action. It is evaluated at activation time,
// not at plan construction, so it sees the store as it is when the
// trigger fires.
type Condition interface {
	Holds(ctx context.Context, rt *Runtime) (bool, error)
}

type dbKeyNotSetArgs struct {
	DB    string `yaml:"db"`
	DBKey string `yaml:"db_key"`
}

// dbKeyNotSetCondition holds when a store key is absent. Typical use is
// one-time initialization: run an action only until something records
// that it happened.
type dbKeyNotSetCondition struct {
	db  string
	key string
}

func newDBKeyNotSet(args yaml.Node) (Condition, error) {
	a := dbKeyNotSetArgs{DB: defaultSceneDB}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.DBKey == "" {
		return nil, fmt.Errorf("%w: DBKeyNotSet requires a db_key", ErrConfig)
	}
	return dbKeyNotSetCondition{db: a.DB, key: a.DBKey}, nil
}

func (c dbKeyNotSetCondition) Holds(ctx context.Context, rt *Runtime) (bool, error) {
	_, err := rt.Store.Get(ctx, c.db, c.key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// andCondition holds when every child holds. Empty is vacuously true.
type andCondition struct {
	children []Condition
}

// newAnd flattens nested And children into one level. Or children are
// kept intact: only same-type nesting collapses.
func newAnd(children []Condition) Condition {
	flat := make([]Condition, 0, len(children))
	for _, c := range children {
		if inner, ok := c.(*andCondition); ok {
			flat = append(flat, inner.children...)
			continue
		}
		flat = append(flat, c)
	}
	return &andCondition{children: flat}
}

func (c *andCondition) Holds(ctx context.Context, rt *Runtime) (bool, error) {
	for _, child := range c.children {
		ok, err := child.Holds(ctx, rt)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// orCondition holds when any child holds. Empty is false.
type orCondition struct {
	children []Condition
}

func newOr(children []Condition) Condition {
	flat := make([]Condition, 0, len(children))
	for _, c := range children {
		if inner, ok := c.(*orCondition); ok {
			flat = append(flat, inner.children...)
			continue
		}
		flat = append(flat, c)
	}
	return &orCondition{children: flat}
}

func (c *orCondition) Holds(ctx context.Context, rt *Runtime) (bool, error) {
	for _, child := range c.children {
		ok, err := child.Holds(ctx, rt)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func newAndFromArgs(args yaml.Node) (Condition, error) {
	children, err := buildConditionList("And", args)
	if err != nil {
		return nil, err
	}
	return newAnd(children), nil
}

func newOrFromArgs(args yaml.Node) (Condition, error) {
	children, err := buildConditionList("Or", args)
	if err != nil {
		return nil, err
	}
	return newOr(children), nil
}

// buildConditionList decodes a container's args: a bare list of
// condition specs, mirroring the Sequence action shape.
func buildConditionList(kind string, args yaml.Node) ([]Condition, error) {
	if args.IsZero() {
		return nil, fmt.Errorf("%w: %s requires a list of conditions", ErrConfig, kind)
	}
	var specs []NodeSpec
	if err := args.Decode(&specs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	children := make([]Condition, 0, len(specs))
	for _, spec := range specs {
		child, err := buildCondition(spec)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}
