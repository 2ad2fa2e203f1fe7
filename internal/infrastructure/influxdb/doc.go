// Package influxdb provides InfluxDB connectivity for heliplan.
//
// It wraps the official influxdb-client-go v2 library with heliplan-specific
// patterns for connection management, activation history, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Activation history (which trigger fired which action, when, how long)
//   - Plan evaluation cycles (startup and re-evaluation churn)
//   - Ad-hoc operational measurements via the generic point writers
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "heliplan",
//	    Bucket: "activations",
//	}
//
//	client, err := influxdb.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record an activation
//	client.WriteActivation("daily", 0, "store_scene_by_name", 8*time.Millisecond, nil)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// A plan firing a handful of actions per minute never blocks on telemetry.
package influxdb
