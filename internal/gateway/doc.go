// Package gateway connects door controllers on the MQTT broker to the
// access engine.
//
// The ConnectionManager owns the broker session and subscribes:
//
//	device/+/status     online, offline or error, with optional details
//	device/+/heartbeat  periodic sign of life with optional stats
//	device/+/access     a card read: {cardId, doorId, timestamp?}
//	device/+/event      door and controller events: {eventType, details?}
//	system/#            broker-wide notices, logged only
//
// Every frame is decoded (and decrypted when it arrives in the envelope)
// before it is routed by message type. Frames that fail to decode are
// logged and dropped; nothing a device sends can stop the session.
//
// Heartbeats and status frames feed the liveness monitor. Card reads go to
// the access engine. Events raise alerts and access log entries; an event
// type the gateway does not know still produces a low-severity device_event
// alert.
//
// The remote operations (CheckAccess, RemoteUnlock, RemoteLock,
// RestartDevice, UpdateFirmware) are the synchronous entry points for
// administrative callers.
package gateway
