// Package mqtt provides MQTT client connectivity for the AVR bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
// The bridge publishes retained state and object documents per state path
// and listens for host commands on the instance's set topics:
//
//	graylogic/avr/{instance}/state/{group}/{name}
//	graylogic/avr/{instance}/object/{group}/{name}
//	graylogic/avr/{instance}/set/{group}/{name}
//	graylogic/health/avr
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
