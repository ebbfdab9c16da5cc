package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the gateway.
const (
	MeasurementAccess    = "access_decisions"
	MeasurementHeartbeat = "device_heartbeat"
	MeasurementStatus    = "device_status"
	MeasurementAlert     = "alerts"
)

// RecordAccessDecision writes one point per authorization decision.
//
// Tags: door_id, device_id, result (granted|denied), reason.
func (c *Client) RecordAccessDecision(doorID, deviceID string, granted bool, reason string, at time.Time) {
	c.write(accessDecisionPoint(doorID, deviceID, granted, reason, at))
}

// RecordHeartbeat writes a heartbeat and the numeric entries of its stats
// object (for example rssi, uptime, free_heap).
func (c *Client) RecordHeartbeat(deviceID string, stats map[string]any, at time.Time) {
	c.write(heartbeatPoint(deviceID, stats, at))
}

// RecordDeviceStatus writes a device status transition.
func (c *Client) RecordDeviceStatus(deviceID, status string, at time.Time) {
	c.write(write.NewPoint(MeasurementStatus,
		map[string]string{"device_id": deviceID, "status": status},
		map[string]interface{}{"value": 1},
		at,
	))
}

// RecordAlert writes one point per emitted alert.
func (c *Client) RecordAlert(alertType, severity string, at time.Time) {
	c.write(write.NewPoint(MeasurementAlert,
		map[string]string{"type": alertType, "severity": severity},
		map[string]interface{}{"value": 1},
		at,
	))
}

func (c *Client) write(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func accessDecisionPoint(doorID, deviceID string, granted bool, reason string, at time.Time) *write.Point {
	result := "denied"
	if granted {
		result = "granted"
	}
	tags := map[string]string{
		"door_id": doorID,
		"result":  result,
	}
	if deviceID != "" {
		tags["device_id"] = deviceID
	}
	if reason != "" {
		tags["reason"] = reason
	}
	return write.NewPoint(MeasurementAccess, tags, map[string]interface{}{"value": 1}, at)
}

// heartbeatPoint keeps numeric and boolean stats; strings and nested
// objects would explode field cardinality.
func heartbeatPoint(deviceID string, stats map[string]any, at time.Time) *write.Point {
	fields := map[string]interface{}{"seen": 1}
	for k, v := range stats {
		switch n := v.(type) {
		case float64, float32, int, int64, int32, uint, uint64, uint32, bool:
			fields[k] = n
		}
	}
	return write.NewPoint(MeasurementHeartbeat, map[string]string{"device_id": deviceID}, fields, at)
}
