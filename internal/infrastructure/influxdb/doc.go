// Package influxdb exports kiosk telemetry to InfluxDB v2.
//
// Every stored heartbeat becomes one kiosk_heartbeat point tagged with the
// device ID, and the janitor periodically writes kiosk_fleet presence
// counts. SQLite stays the source of truth; InfluxDB is an optional
// long-term store for dashboards.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without export
//	}
//	defer client.Close()
//
//	recorder.SetMetricsSink(client)
package influxdb
