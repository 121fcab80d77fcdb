package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	// MeasurementHeartbeat holds one point per stored kiosk heartbeat.
	MeasurementHeartbeat = "kiosk_heartbeat"

	// MeasurementFleet holds periodic fleet-wide presence counts.
	MeasurementFleet = "kiosk_fleet"
)

// WriteDeviceMetrics records a heartbeat's numeric metrics.
// It implements telemetry.MetricsSink.
//
// The point is tagged with device_id and carries one field per metric plus
// a boolean offline field, so a heartbeat without metrics still marks the
// device as seen.
func (c *Client) WriteDeviceMetrics(deviceID string, ts time.Time, metrics map[string]float64, offline bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(heartbeatPoint(deviceID, ts, metrics, offline))
}

// WriteFleetPresence records how many devices are online, offline and
// never seen at ts.
func (c *Client) WriteFleetPresence(ts time.Time, counts map[string]int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(fleetPoint(ts, counts))
}

func heartbeatPoint(deviceID string, ts time.Time, metrics map[string]float64, offline bool) *write.Point {
	fields := make(map[string]any, len(metrics)+1)
	for name, value := range metrics {
		fields[name] = value
	}
	fields["offline"] = offline

	return write.NewPoint(
		MeasurementHeartbeat,
		map[string]string{"device_id": deviceID},
		fields,
		ts,
	)
}

func fleetPoint(ts time.Time, counts map[string]int) *write.Point {
	fields := make(map[string]any, len(counts)+1)
	total := 0
	for presence, n := range counts {
		fields[presence] = n
		total += n
	}
	fields["total"] = total

	return write.NewPoint(MeasurementFleet, nil, fields, ts)
}
