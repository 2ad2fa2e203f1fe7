package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heliplan/heliplan-core/internal/astro"
)

// locationCacheKey is the store key the resolved site location is cached
// under. One site per cache namespace.
const locationCacheKey = "location"

// ─── FlushDb ────────────────────────────────────────────────────────────────

type flushDBArgs struct {
	DB string `yaml:"db"`
}

type flushDBAction struct {
	db string
}

func newFlushDB(args yaml.Node) (Action, error) {
	var a flushDBArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.DB == "" {
		return nil, fmt.Errorf("%w: FlushDb requires a db", ErrConfig)
	}
	return &flushDBAction{db: a.DB}, nil
}

func (a *flushDBAction) Kind() string { return "FlushDb" }

func (a *flushDBAction) Execute(ctx context.Context, rt *Runtime) error {
	if err := rt.Store.Flush(ctx, a.db); err != nil {
		return fmt.Errorf("flushing %q: %w", a.db, err)
	}
	rt.Logger.Info("namespace flushed", "db", a.db)
	return nil
}

// ─── PopulateGeoVariables ───────────────────────────────────────────────────

type populateGeoArgs struct {
	VariablesDB  string   `yaml:"variables_db"`
	CacheDB      string   `yaml:"cache_db"`
	LocationName string   `yaml:"location_name"`
	Latitude     *float64 `yaml:"lat"`
	Longitude    *float64 `yaml:"lng"`
}

// populateGeoAction recomputes the solar anchors for the civil day of
// "now" and publishes them as RFC 3339 variables. Daily plans bind it
// to a midnight-ish trigger so @sunrise and friends track the season.
type populateGeoAction struct {
	variablesDB  string
	cacheDB      string
	locationName string
	lat, lng     *float64
}

func newPopulateGeo(args yaml.Node) (Action, error) {
	var a populateGeoArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.VariablesDB == "" {
		a.VariablesDB = defaultVariablesDB
	}
	hasCoords := a.Latitude != nil && a.Longitude != nil
	if a.CacheDB == "" && !hasCoords && a.LocationName == "" {
		return nil, fmt.Errorf("%w: PopulateGeoVariables requires a cache_db, coordinates, or a location_name", ErrConfig)
	}
	return &populateGeoAction{
		variablesDB:  a.VariablesDB,
		cacheDB:      a.CacheDB,
		locationName: a.LocationName,
		lat:          a.Latitude,
		lng:          a.Longitude,
	}, nil
}

func (a *populateGeoAction) Kind() string { return "PopulateGeoVariables" }

func (a *populateGeoAction) Execute(ctx context.Context, rt *Runtime) error {
	loc, err := a.location(ctx, rt)
	if err != nil {
		return fmt.Errorf("resolving site location: %w", err)
	}
	obs, err := loc.Observer()
	if err != nil {
		return err
	}

	anchors := astro.ComputeAnchors(rt.Now(), obs)

	// Flush first so anchors from a previous location never linger.
	if err := rt.Store.Flush(ctx, a.variablesDB); err != nil {
		return fmt.Errorf("flushing %q: %w", a.variablesDB, err)
	}
	for name, at := range anchors {
		if err := rt.Store.Set(ctx, a.variablesDB, name, at.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("storing anchor %q: %w", name, err)
		}
	}
	rt.Logger.Info("geo variables populated",
		"db", a.variablesDB,
		"timezone", loc.Timezone,
		"anchors", len(anchors),
	)
	return nil
}

// location produces the site location, consulting the cache namespace
// when one is configured. The geocoder runs at most once per cache
// lifetime; raw coordinates and cached entries never touch the network.
func (a *populateGeoAction) location(ctx context.Context, rt *Runtime) (astro.Location, error) {
	if a.cacheDB == "" {
		return a.resolve(ctx, rt)
	}

	raw, err := rt.Store.GetOrCompute(ctx, a.cacheDB, locationCacheKey, func(ctx context.Context) (string, error) {
		loc, err := a.resolve(ctx, rt)
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(loc)
		if err != nil {
			return "", fmt.Errorf("encoding location: %w", err)
		}
		return string(b), nil
	})
	if err != nil {
		return astro.Location{}, err
	}

	var loc astro.Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return astro.Location{}, fmt.Errorf("decoding cached location %s/%s: %w", a.cacheDB, locationCacheKey, err)
	}
	return loc, nil
}

func (a *populateGeoAction) resolve(ctx context.Context, rt *Runtime) (astro.Location, error) {
	if a.lat != nil && a.lng != nil {
		return rt.Geo.ResolveCoords(*a.lat, *a.lng), nil
	}
	if a.locationName != "" {
		return rt.Geo.ResolveName(ctx, a.locationName)
	}
	return astro.Location{}, errors.New("cache is empty and no coordinates or location name are configured")
}
