// Package mqtt provides MQTT client connectivity for heliplan.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// heliplan uses MQTT as the message bus between the planner core and the
// bridge fronting the device hub. The broker (Mosquitto) decouples the
// core from hub-specific transport: the bridge publishes retained scene,
// group and device state, forwards hardware button events, and accepts
// command messages.
//
//	heliplan core ↔ MQTT Broker ↔ device bridge
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all hardware button events
//	err = client.Subscribe(mqtt.Topics{}.AllButtonEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish command
//	topic := mqtt.Topics{}.CommandScene("scene-01")
//	client.Publish(topic, []byte(`{"action":"activate"}`), 1, false)
package mqtt
