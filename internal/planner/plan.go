package planner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry pairs one trigger with the action it fires.
type Entry struct {
	Trigger Trigger
	Action  Action
}

// Plan is an ordered list of entries. Order matters: the engine binds
// top to bottom and inline triggers run during the bind, so variables an
// early entry populates are visible to the binds below it.
type Plan struct {
	Entries []Entry
}

type entrySpec struct {
	Trigger NodeSpec  `yaml:"trigger"`
	Action  yaml.Node `yaml:"action"`
}

type planFile struct {
	Plan []entrySpec `yaml:"plan"`
}

// LoadPlan parses a plan document and constructs every node in it.
// All configuration errors surface here, before anything binds.
func LoadPlan(data []byte) (*Plan, error) {
	var pf planFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if len(pf.Plan) == 0 {
		return nil, fmt.Errorf("%w: plan has no entries", ErrConfig)
	}

	plan := &Plan{Entries: make([]Entry, 0, len(pf.Plan))}
	for i, spec := range pf.Plan {
		trigger, err := buildTrigger(spec.Trigger)
		if err != nil {
			return nil, fmt.Errorf("plan entry %d: %w", i+1, err)
		}
		action, err := buildActionNode(spec.Action)
		if err != nil {
			return nil, fmt.Errorf("plan entry %d: %w", i+1, err)
		}
		plan.Entries = append(plan.Entries, Entry{Trigger: trigger, Action: action})
	}
	return plan, nil
}

// LoadPlanFile reads and parses a plan document from disk.
func LoadPlanFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	return LoadPlan(data)
}

// buildActionNode accepts either a single action mapping or a bare list,
// which becomes an implicit Sequence.
func buildActionNode(node yaml.Node) (Action, error) {
	switch node.Kind {
	case yaml.SequenceNode:
		return newSequenceFromArgs(node)
	case yaml.MappingNode:
		var spec NodeSpec
		if err := node.Decode(&spec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		return buildAction(spec)
	case yaml.AliasNode:
		return buildActionNode(*node.Alias)
	default:
		return nil, fmt.Errorf("%w: action missing", ErrConfig)
	}
}
