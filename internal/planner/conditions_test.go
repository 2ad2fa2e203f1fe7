package planner

import (
	"context"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

type stubCond struct {
	v   bool
	err error
}

func (s stubCond) Holds(context.Context, *Runtime) (bool, error) { return s.v, s.err }

func TestDBKeyNotSet(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	cond, err := newDBKeyNotSet(yamlArgs(t, "db: flags\ndb_key: initialized"))
	if err != nil {
		t.Fatalf("newDBKeyNotSet: %v", err)
	}

	ok, err := cond.Holds(ctx, &rig.rt)
	if err != nil || !ok {
		t.Fatalf("absent key: got (%v, %v), want (true, nil)", ok, err)
	}

	if err := rig.store.Set(ctx, "flags", "initialized", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err = cond.Holds(ctx, &rig.rt)
	if err != nil || ok {
		t.Fatalf("present key: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestDBKeyNotSet_DefaultNamespace(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	cond, err := newDBKeyNotSet(yamlArgs(t, `db_key: evening`))
	if err != nil {
		t.Fatalf("newDBKeyNotSet: %v", err)
	}

	if err := rig.store.Set(ctx, defaultSceneDB, "evening", "scene-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err := cond.Holds(ctx, &rig.rt)
	if err != nil || ok {
		t.Fatalf("got (%v, %v), want (false, nil): default db not consulted", ok, err)
	}
}

func TestDBKeyNotSet_RequiresKey(t *testing.T) {
	if _, err := newDBKeyNotSet(yamlArgs(t, `db: flags`)); !errors.Is(err, ErrConfig) {
		t.Fatalf("got %v, want ErrConfig", err)
	}
}

func TestConditionContainers(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	boom := errors.New("boom")

	tests := []struct {
		name    string
		cond    Condition
		want    bool
		wantErr error
	}{
		{"and all hold", newAnd([]Condition{stubCond{v: true}, stubCond{v: true}}), true, nil},
		{"and one fails", newAnd([]Condition{stubCond{v: true}, stubCond{v: false}}), false, nil},
		{"and empty", newAnd(nil), true, nil},
		{"and short-circuits", newAnd([]Condition{stubCond{v: false}, stubCond{err: boom}}), false, nil},
		{"or one holds", newOr([]Condition{stubCond{v: false}, stubCond{v: true}}), true, nil},
		{"or none hold", newOr([]Condition{stubCond{v: false}, stubCond{v: false}}), false, nil},
		{"or empty", newOr(nil), false, nil},
		{"or propagates error", newOr([]Condition{stubCond{err: boom}, stubCond{v: true}}), false, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.cond.Holds(ctx, &rig.rt)
			if ok != tt.want || !errors.Is(err, tt.wantErr) {
				t.Fatalf("got (%v, %v), want (%v, %v)", ok, err, tt.want, tt.wantErr)
			}
		})
	}
}

func TestConditionFlattening(t *testing.T) {
	a, b, c := stubCond{v: true}, stubCond{v: true}, stubCond{v: true}

	and := newAnd([]Condition{newAnd([]Condition{a, b}), c}).(*andCondition)
	if len(and.children) != 3 {
		t.Errorf("nested And has %d children, want 3 flattened", len(and.children))
	}

	// Mixed nesting keeps its structure: an Or inside an And is a
	// single child.
	mixed := newAnd([]Condition{newOr([]Condition{a, b}), c}).(*andCondition)
	if len(mixed.children) != 2 {
		t.Errorf("And with Or child has %d children, want 2", len(mixed.children))
	}

	or := newOr([]Condition{newOr([]Condition{a, b}), newOr([]Condition{c})}).(*orCondition)
	if len(or.children) != 3 {
		t.Errorf("nested Or has %d children, want 3 flattened", len(or.children))
	}
}

func TestBuildCondition_FromYAML(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	var spec NodeSpec
	src := `
type: Or
args:
  - type: DBKeyNotSet
    args: {db: flags, db_key: a}
  - type: And
    args:
      - type: DBKeyNotSet
        args: {db: flags, db_key: b}
      - type: DBKeyNotSet
        args: {db: flags, db_key: c}
`
	if err := yaml.Unmarshal([]byte(src), &spec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	cond, err := buildCondition(spec)
	if err != nil {
		t.Fatalf("buildCondition: %v", err)
	}

	// a is set, b and c absent: the Or holds through its And branch.
	if err := rig.store.Set(ctx, "flags", "a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err := cond.Holds(ctx, &rig.rt)
	if err != nil || !ok {
		t.Fatalf("got (%v, %v), want (true, nil)", ok, err)
	}

	// With b set as well the And branch collapses and nothing holds.
	if err := rig.store.Set(ctx, "flags", "b", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err = cond.Holds(ctx, &rig.rt)
	if err != nil || ok {
		t.Fatalf("got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestBuildCondition_UnknownType(t *testing.T) {
	if _, err := buildCondition(NodeSpec{Type: "Wrong"}); !errors.Is(err, ErrConfig) {
		t.Fatalf("got %v, want ErrConfig", err)
	}
	if _, err := buildCondition(NodeSpec{}); !errors.Is(err, ErrConfig) {
		t.Fatalf("missing type: got %v, want ErrConfig", err)
	}
}
