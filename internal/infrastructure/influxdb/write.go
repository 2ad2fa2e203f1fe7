package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteActivation records a single trigger activation.
//
// This is the primary method for the activation history: one point per
// action run, whether it was fired by the scheduler, an external event
// or an operator. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - trigger: Trigger kind that fired (e.g., "daily", "on_external_event")
//   - entry: Plan entry index the activation belongs to
//   - action: Action kind executed (low cardinality, e.g., "toggle_stored_scene")
//   - duration: Wall-clock time the action took
//   - actErr: Action error, nil on success
//
// Example:
//
//	client.WriteActivation("daily", 2, "store_scene_by_name", 12*time.Millisecond, nil)
func (c *Client) WriteActivation(trigger string, entry int, action string, duration time.Duration, actErr error) {
	if !c.IsConnected() {
		return
	}

	status := "ok"
	fields := map[string]interface{}{
		"entry":       entry,
		"duration_ms": duration.Seconds() * millisecondsPerSecond,
	}
	if actErr != nil {
		status = "error"
		fields["error"] = actErr.Error()
	}

	point := write.NewPoint(
		"activation",
		map[string]string{
			"trigger": trigger,
			"action":  action,
			"status":  status,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEvaluation records one plan evaluation cycle.
//
// Used for tracking startup evaluation and re-evaluation churn: how many
// entries were bound, how many failed, and how long the cycle took.
//
// Parameters:
//   - reason: What prompted the cycle (e.g., "startup", "reevaluate", "api")
//   - entries: Number of plan entries processed
//   - failed: Number of entries that failed to bind
//   - duration: Wall-clock time of the whole cycle
func (c *Client) WriteEvaluation(reason string, entries, failed int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"plan_evaluation",
		map[string]string{
			"reason": reason,
		},
		map[string]interface{}{
			"entries":     entries,
			"failed":      failed,
			"duration_ms": duration.Seconds() * millisecondsPerSecond,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("schedule_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"jobs": 12, "next_in_s": 340.0})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
