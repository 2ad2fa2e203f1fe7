package planner

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeSpec is the raw type+args pair every plan node shares. Args stay
// an undecoded YAML node until the concrete constructor knows its shape.
type NodeSpec struct {
	Type string    `yaml:"type"`
	Args yaml.Node `yaml:"args"`
}

// decodeArgs decodes a node's args block into out. An absent block is
// allowed; the constructor's defaults apply.
func decodeArgs(args yaml.Node, out any) error {
	if args.IsZero() {
		return nil
	}
	if err := args.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

// Duration accepts either a bare number of seconds or a Go duration
// string ("90", "1.5", "30m", "1h15m") in plan files.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var secs float64
	if err := node.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", node.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// The three registries map plan-file type names to constructors. They
// are the closed variant sets of the DSL: an unknown name fails the
// whole plan load, never an individual fire.

var triggerRegistry = map[string]func(yaml.Node) (Trigger, error){
	"Immediately":     func(yaml.Node) (Trigger, error) { return immediateTrigger{}, nil },
	"Once":            newOnceTrigger,
	"Daily":           newDailyTrigger,
	"Periodic":        newPeriodicTrigger,
	"Minutely":        newMinutelyTrigger,
	"OnExternalEvent": newEventTrigger,
}

// actionRegistry and conditionRegistry are populated in init() rather
// than in their declarations: container constructors (Sequence, RunIf,
// Or, ...) recurse through buildAction/buildCondition back into the
// maps, which the compiler rejects as an initialization cycle.
var actionRegistry map[string]func(yaml.Node) (Action, error)

var conditionRegistry map[string]func(yaml.Node) (Condition, error)

func init() {
	actionRegistry = map[string]func(yaml.Node) (Action, error){
		"StoreSceneByName":     newStoreSceneByName,
		"StoreSceneById":       newStoreSceneByID,
		"ToggleStoredScene":    newToggleStoredScene,
		"SyncScene":            newSyncScene,
		"UpdateResource":       newUpdateResource,
		"Sequence":             newSequenceFromArgs,
		"Delayed":              newDelayedFromArgs,
		"RunIf":                newRunIfFromArgs,
		"FlushDb":              newFlushDB,
		"PopulateGeoVariables": newPopulateGeo,
		"PrintSchedule":        newPrintSchedule,
		"RunClosestSchedule":   newRunClosest,
		"ReEvaluatePlan":       newReEvaluate,
	}
	conditionRegistry = map[string]func(yaml.Node) (Condition, error){
		"DBKeyNotSet": newDBKeyNotSet,
		"And":         newAndFromArgs,
		"Or":          newOrFromArgs,
	}
}

// buildTrigger constructs the trigger a plan entry names.
func buildTrigger(spec NodeSpec) (Trigger, error) {
	if spec.Type == "" {
		return nil, fmt.Errorf("%w: trigger type missing", ErrConfig)
	}
	build, ok := triggerRegistry[spec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown trigger type %q", ErrConfig, spec.Type)
	}
	return build(spec.Args)
}

// buildAction constructs the action a plan node names.
func buildAction(spec NodeSpec) (Action, error) {
	if spec.Type == "" {
		return nil, fmt.Errorf("%w: action type missing", ErrConfig)
	}
	build, ok := actionRegistry[spec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action type %q", ErrConfig, spec.Type)
	}
	return build(spec.Args)
}

// buildCondition constructs the condition a RunIf or container names.
func buildCondition(spec NodeSpec) (Condition, error) {
	if spec.Type == "" {
		return nil, fmt.Errorf("%w: condition type missing", ErrConfig)
	}
	build, ok := conditionRegistry[spec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown condition type %q", ErrConfig, spec.Type)
	}
	return build(spec.Args)
}
