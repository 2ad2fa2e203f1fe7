package planner

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/heliplan/heliplan-core/internal/bridge"
	"github.com/heliplan/heliplan-core/internal/store"
)

// defaultSceneDB is the store namespace scene actions and conditions
// fall back to when the plan names none.
const defaultSceneDB = "stored_scenes"

// ─── StoreSceneByName / StoreSceneById ──────────────────────────────────────

// storeSceneAction resolves a scene against the live bridge catalogue,
// remembers its id under db/db_key and optionally activates it. Both
// plan-file variants share it; only the resolve step differs.
//
// Resolution happens at execution time, not at bind time: the catalogue
// may change between evaluations and the freshest match wins.
type storeSceneAction struct {
	kind     string
	db       string
	key      string
	activate bool
	resolve  func(rt *Runtime) (bridge.Scene, error)
}

type storeSceneByNameArgs struct {
	Name     string `yaml:"name"`
	Group    string `yaml:"group"`
	DB       string `yaml:"db"`
	DBKey    string `yaml:"db_key"`
	Activate *bool  `yaml:"activate"`
}

func newStoreSceneByName(args yaml.Node) (Action, error) {
	var a storeSceneByNameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Name == "" {
		return nil, fmt.Errorf("%w: StoreSceneByName requires a name", ErrConfig)
	}
	if a.DBKey == "" {
		return nil, fmt.Errorf("%w: StoreSceneByName requires a db_key", ErrConfig)
	}
	if a.DB == "" {
		a.DB = defaultSceneDB
	}

	name, group := a.Name, a.Group
	return &storeSceneAction{
		kind:     "StoreSceneByName",
		db:       a.DB,
		key:      a.DBKey,
		activate: a.Activate == nil || *a.Activate,
		resolve: func(rt *Runtime) (bridge.Scene, error) {
			return rt.Bridge.FindSceneByName(name, group)
		},
	}, nil
}

type storeSceneByIDArgs struct {
	ID       string `yaml:"id"`
	DB       string `yaml:"db"`
	DBKey    string `yaml:"db_key"`
	Activate *bool  `yaml:"activate"`
}

func newStoreSceneByID(args yaml.Node) (Action, error) {
	var a storeSceneByIDArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, fmt.Errorf("%w: StoreSceneById requires an id", ErrConfig)
	}
	if a.DBKey == "" {
		return nil, fmt.Errorf("%w: StoreSceneById requires a db_key", ErrConfig)
	}
	if a.DB == "" {
		a.DB = defaultSceneDB
	}

	id := a.ID
	return &storeSceneAction{
		kind:     "StoreSceneById",
		db:       a.DB,
		key:      a.DBKey,
		activate: a.Activate == nil || *a.Activate,
		resolve: func(rt *Runtime) (bridge.Scene, error) {
			return rt.Bridge.GetScene(id)
		},
	}, nil
}

func (a *storeSceneAction) Kind() string { return a.kind }

func (a *storeSceneAction) Execute(ctx context.Context, rt *Runtime) error {
	scene, err := a.resolve(rt)
	if err != nil {
		return fmt.Errorf("resolving scene: %w", err)
	}
	if err := rt.Store.Set(ctx, a.db, a.key, scene.ID); err != nil {
		return fmt.Errorf("storing scene %q: %w", scene.ID, err)
	}
	rt.Logger.Info("scene stored",
		"scene_id", scene.ID,
		"scene_name", scene.Name,
		"db", a.db,
		"db_key", a.key,
	)
	if !a.activate {
		return nil
	}

	// Activation is polite: a scene scoped to a group that is entirely
	// off stays off rather than switching the room on behind the
	// occupants' backs.
	if scene.GroupID != "" {
		group, err := rt.Bridge.GetGroup(scene.GroupID)
		if err != nil {
			return fmt.Errorf("checking group %q: %w", scene.GroupID, err)
		}
		if !group.AnyOn {
			rt.Logger.Info("group is off, scene stored without activation",
				"scene_id", scene.ID,
				"group_id", scene.GroupID,
			)
			return nil
		}
	}
	if err := rt.Bridge.ActivateScene(ctx, scene.ID); err != nil {
		return fmt.Errorf("activating scene %q: %w", scene.ID, err)
	}
	return nil
}

// ─── ToggleStoredScene ──────────────────────────────────────────────────────

type toggleStoredSceneArgs struct {
	DB    string `yaml:"db"`
	DBKey string `yaml:"db_key"`
}

type toggleStoredSceneAction struct {
	db  string
	key string
}

func newToggleStoredScene(args yaml.Node) (Action, error) {
	var a toggleStoredSceneArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.DBKey == "" {
		return nil, fmt.Errorf("%w: ToggleStoredScene requires a db_key", ErrConfig)
	}
	if a.DB == "" {
		a.DB = defaultSceneDB
	}
	return &toggleStoredSceneAction{db: a.DB, key: a.DBKey}, nil
}

func (a *toggleStoredSceneAction) Kind() string { return "ToggleStoredScene" }

func (a *toggleStoredSceneAction) Execute(ctx context.Context, rt *Runtime) error {
	sceneID, err := rt.Store.Get(ctx, a.db, a.key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrNoStoredScene, a.db, a.key)
	}
	if err != nil {
		return fmt.Errorf("reading stored scene: %w", err)
	}

	scene, err := rt.Bridge.GetScene(sceneID)
	if err != nil {
		return fmt.Errorf("resolving scene %q: %w", sceneID, err)
	}
	if scene.GroupID == "" {
		return fmt.Errorf("scene %q has no group to toggle", sceneID)
	}
	group, err := rt.Bridge.GetGroup(scene.GroupID)
	if err != nil {
		return fmt.Errorf("checking group %q: %w", scene.GroupID, err)
	}

	// Fully lit rooms switch off; anything else comes up on the scene.
	if group.AllOn {
		rt.Logger.Info("toggling group off", "group_id", group.ID, "scene_id", sceneID)
		return rt.Bridge.SetGroupState(ctx, group.ID, false, "")
	}
	rt.Logger.Info("toggling group on", "group_id", group.ID, "scene_id", sceneID)
	return rt.Bridge.SetGroupState(ctx, group.ID, true, sceneID)
}

// ─── SyncScene ──────────────────────────────────────────────────────────────

type syncSceneArgs struct {
	DB    string `yaml:"db"`
	DBKey string `yaml:"db_key"`
}

type syncSceneAction struct {
	db  string
	key string
}

func newSyncScene(args yaml.Node) (Action, error) {
	var a syncSceneArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.DBKey == "" {
		return nil, fmt.Errorf("%w: SyncScene requires a db_key", ErrConfig)
	}
	if a.DB == "" {
		a.DB = defaultSceneDB
	}
	return &syncSceneAction{db: a.DB, key: a.DBKey}, nil
}

func (a *syncSceneAction) Kind() string { return "SyncScene" }

func (a *syncSceneAction) Execute(ctx context.Context, rt *Runtime) error {
	sceneID, err := rt.Store.Get(ctx, a.db, a.key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrNoStoredScene, a.db, a.key)
	}
	if err != nil {
		return fmt.Errorf("reading stored scene: %w", err)
	}

	updated, err := rt.Bridge.SyncScene(ctx, sceneID)
	if err != nil {
		return fmt.Errorf("syncing scene %q: %w", sceneID, err)
	}
	rt.Logger.Info("scene synchronized", "scene_id", sceneID, "lights_updated", updated)
	return nil
}

// ─── UpdateResource ─────────────────────────────────────────────────────────

type updateResourceArgs struct {
	Kind   string         `yaml:"kind"`
	ID     string         `yaml:"id"`
	Update map[string]any `yaml:"update"`
}

type updateResourceAction struct {
	resourceKind string
	resourceID   string
	update       map[string]any
}

func newUpdateResource(args yaml.Node) (Action, error) {
	var a updateResourceArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, fmt.Errorf("%w: UpdateResource requires an id", ErrConfig)
	}
	if len(a.Update) == 0 {
		return nil, fmt.Errorf("%w: UpdateResource requires an update payload", ErrConfig)
	}
	if a.Kind == "" {
		a.Kind = "light"
	}
	return &updateResourceAction{resourceKind: a.Kind, resourceID: a.ID, update: a.Update}, nil
}

func (a *updateResourceAction) Kind() string { return "UpdateResource" }

func (a *updateResourceAction) Execute(ctx context.Context, rt *Runtime) error {
	if err := rt.Bridge.UpdateResource(ctx, a.resourceKind, a.resourceID, a.update); err != nil {
		return fmt.Errorf("updating %s %q: %w", a.resourceKind, a.resourceID, err)
	}
	rt.Logger.Info("resource updated", "kind", a.resourceKind, "id", a.resourceID)
	return nil
}
