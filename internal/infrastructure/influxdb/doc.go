// Package influxdb is the gateway's optional telemetry sink.
//
// It wraps the official influxdb-client-go v2 library and records:
//   - access decisions (granted/denied, by door and reason)
//   - device heartbeats with their numeric stats
//   - device status transitions
//   - emitted alerts
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.RecordAccessDecision("door-1", "reader-1", false, "outside_schedule", time.Now())
//
// Writes are non-blocking and batched (batch_size, flush_interval). Write
// failures arrive through SetOnError; they never affect the access path.
package influxdb
