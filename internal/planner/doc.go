// Package planner evaluates the automation plan for Heliplan Core.
//
// A plan is an ordered list of trigger/action entries. Triggers are
// activation sources (clock times, solar anchors, intervals, hardware
// button events); actions mutate device state through the bridge or
// state in the variable store. The engine binds every trigger, owns the
// resulting scheduled jobs and event subscriptions, and can tear the
// whole set down and rebuild it on request.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                     │
//	│  Binds entries in order, serializes re-evaluation       │
//	│                                                         │
//	│   plan.go ──▶ registry.go ──▶ triggers / actions        │
//	│   (YAML)      (type ──▶ ctor)  (variant values)         │
//	│                                                         │
//	│  ┌─────────────────────────────────────────────────┐   │
//	│  │  Activation pipeline                             │   │
//	│  │  1. Trigger fires (job timer or button event)    │   │
//	│  │  2. Action executes against the Runtime          │   │
//	│  │  3. Result logged, written to telemetry,         │   │
//	│  │     broadcast on the "activation" channel        │   │
//	│  │  4. Recurring triggers register the next job     │   │
//	│  └─────────────────────────────────────────────────┘   │
//	└─────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Plan / Entry: parsed automation definition
//   - Trigger: activation source with a Bind/Unbind lifecycle
//   - Action: operation executed on activation
//   - Runtime: collaborator context (store, scheduler, bridge, geo)
//   - Engine: binds the plan and owns the live job/subscription set
//
// # Thread Safety
//
// Activations from one trigger are serialized; activations from
// different triggers run concurrently. Evaluate, ReEvaluate and Close
// serialize on the engine, so a re-evaluation request arriving during a
// rebuild waits its turn instead of interleaving.
//
// # Usage
//
//	plan, err := planner.LoadPlanFile(cfg.PlanPath)
//	if err != nil {
//	    return err
//	}
//
//	engine := planner.New(plan, planner.Runtime{
//	    Store:     store.NewComputed(backend),
//	    Scheduler: scheduler,
//	    Bridge:    hub,
//	    Geo:       astro.NewResolver(),
//	    Events:    hub,
//	    Logger:    log,
//	})
//	if err := engine.Evaluate(ctx); err != nil {
//	    return err
//	}
//	engine.Start(ctx)
package planner
