// Package influxdb records AVR state history in InfluxDB v2.
//
// Every acknowledged numeric or boolean state value (volume, power,
// channel levels) is written as an "avr_state" point tagged with the bridge
// instance and state path, and receiver link transitions are written as
// "avr_connection" points. Writes are batched and non-blocking; failures
// arrive on the SetOnError callback.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without history
//	}
//	defer client.Close()
package influxdb
