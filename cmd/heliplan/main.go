// Heliplan Core - declarative lighting automation
//
// This is the main entry point for the heliplan daemon. It evaluates a
// declarative plan of trigger/action pairs against a device hub:
//   - Timed triggers (clock times, solar anchors, intervals)
//   - Hardware button events from the hub's MQTT event stream
//   - Actions that store/toggle scenes, update resources and maintain
//     the variable store
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/heliplan/heliplan-core/migrations"

	"github.com/heliplan/heliplan-core/internal/api"
	"github.com/heliplan/heliplan-core/internal/astro"
	"github.com/heliplan/heliplan-core/internal/bridge"
	"github.com/heliplan/heliplan-core/internal/infrastructure/config"
	"github.com/heliplan/heliplan-core/internal/infrastructure/database"
	"github.com/heliplan/heliplan-core/internal/infrastructure/influxdb"
	"github.com/heliplan/heliplan-core/internal/infrastructure/logging"
	"github.com/heliplan/heliplan-core/internal/infrastructure/mqtt"
	"github.com/heliplan/heliplan-core/internal/planner"
	"github.com/heliplan/heliplan-core/internal/schedule"
	"github.com/heliplan/heliplan-core/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds the teardown of triggers and in-flight
// activations after the shutdown signal.
const shutdownTimeout = 15 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting heliplan",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// The engine clock is localized to the site timezone: the plan's
	// "HH:MM" literals and day boundaries are meaningless in UTC.
	siteLoc, err := cfg.TimeLocation()
	if err != nil {
		return fmt.Errorf("loading site timezone: %w", err)
	}
	now := func() time.Time { return time.Now().In(siteLoc) }

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Variable store: SQLite-backed, wrapped with the cache-or-compute
	// layer every action shares.
	vars := store.NewComputed(store.NewSQLiteStore(db.DB))

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Bridge client: catalogue mirror + commands + button events
	hubBridge := bridge.New(mqttClient)
	hubBridge.SetLogger(log)
	if err := hubBridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge client: %w", err)
	}
	log.Info("bridge client started")

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Scheduler: the live job table every timed trigger registers into
	sched := schedule.New(schedule.Options{Logger: log, Now: now})
	sched.Start(ctx)
	defer sched.Close()

	// WebSocket hub: created before the engine so activations stream
	// from the very first evaluation pass.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Load the plan and construct the engine
	plan, err := planner.LoadPlanFile(cfg.Plan.Path)
	if err != nil {
		return fmt.Errorf("loading plan: %w", err)
	}
	log.Info("plan loaded", "path", cfg.Plan.Path, "entries", len(plan.Entries))

	rt := planner.Runtime{
		Store:     vars,
		Scheduler: sched,
		Bridge:    hubBridge,
		Geo:       astro.NewResolver(),
		Events:    hubBridge,
		Logger:    log,
		Hub:       hub,
		Now:       now,
	}
	if influxClient != nil {
		rt.Telemetry = influxClient
	}

	engine, err := planner.New(plan, rt)
	if err != nil {
		return fmt.Errorf("constructing plan engine: %w", err)
	}
	engine.Start(ctx)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := engine.Close(closeCtx); closeErr != nil {
			log.Error("error closing plan engine", "error", closeErr)
		}
	}()

	// First evaluation pass: inline triggers fire here, timed triggers
	// register their jobs, event triggers subscribe. Plan defects abort
	// startup; a broken plan must not run half-bound.
	if err := engine.Evaluate(ctx); err != nil {
		return fmt.Errorf("evaluating plan: %w", err)
	}

	// API server (optional)
	if cfg.API.Enabled {
		apiServer, err := startAPI(ctx, cfg, log, engine, sched, vars, hub, db, mqttClient, influxClient)
		if err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Plan engine (unbinds triggers, awaits activations)
	// 3. Scheduler
	// 4. InfluxDB (if enabled)
	// 5. Bridge/MQTT
	// 6. Database

	log.Info("heliplan stopped")
	return nil
}

// startAPI wires and starts the HTTP API server.
func startAPI(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	engine *planner.Engine,
	sched *schedule.Scheduler,
	vars *store.Computed,
	hub *api.Hub,
	db *database.DB,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
) (*api.Server, error) {
	checks := []api.Check{
		{Name: "database", Checker: db},
		{Name: "mqtt", Checker: mqttClient},
	}
	if influxClient != nil {
		checks = append(checks, api.Check{Name: "influxdb", Checker: influxClient})
	}

	siteLoc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Engine:      engine,
		Schedule:    sched,
		Store:       vars,
		Checks:      checks,
		ExternalHub: hub,
		Now:         func() time.Time { return time.Now().In(siteLoc) },
		Version:     version,
	})
	if err != nil {
		return nil, err
	}

	if err := server.Start(ctx); err != nil {
		return nil, err
	}
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)
	return server, nil
}

// getConfigPath returns the configuration file path.
// Uses HELIPLAN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HELIPLAN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
