package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCommandOutcome records a completed command round trip.
//
// latency is the time from dispatch to acknowledgment. The write is
// non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteCommandOutcome(houseID, componentID, actionName string, success bool, latency time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command_outcomes",
		map[string]string{
			"house_id":     houseID,
			"component_id": componentID,
			"action":       actionName,
		},
		map[string]interface{}{
			"success":    success,
			"latency_ms": float64(latency.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandExpired records a command that timed out waiting for its
// acknowledgment.
func (c *Client) WriteCommandExpired(houseID, componentID, actionName string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command_expiries",
		map[string]string{
			"house_id":     houseID,
			"component_id": componentID,
			"action":       actionName,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteComponentMetric writes a numeric sample from a component state
// report (temperature, power draw, brightness).
func (c *Client) WriteComponentMetric(houseID, componentID, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"component_metrics",
		map[string]string{
			"house_id":     houseID,
			"component_id": componentID,
			"measurement":  measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Tags should stay low-cardinality; fields carry the actual data.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
