package codec

import (
	"encoding/json"
	"time"
)

// MessageType is the last segment of a device topic.
type MessageType string

// Message types a device publishes.
const (
	MessageTypeHeartbeat MessageType = "heartbeat"
	MessageTypeStatus    MessageType = "status"
	MessageTypeAccess    MessageType = "access"
	MessageTypeEvent     MessageType = "event"

	// MessageTypeUnknown covers every other suffix. Frames of this type are
	// logged and dropped.
	MessageTypeUnknown MessageType = "unknown"
)

// ParseMessageType maps a topic segment onto the closed set of types.
func ParseMessageType(s string) MessageType {
	switch t := MessageType(s); t {
	case MessageTypeHeartbeat, MessageTypeStatus, MessageTypeAccess, MessageTypeEvent:
		return t
	default:
		return MessageTypeUnknown
	}
}

// Message is a decoded inbound device frame.
type Message struct {
	DeviceID string
	Type     MessageType
	Topic    string

	// Body is the inner JSON object, already decrypted.
	Body json.RawMessage

	// Encrypted reports whether the frame arrived in an envelope.
	Encrypted bool
}

// Bind unmarshals the message body into v.
func (m Message) Bind(v any) error {
	if err := json.Unmarshal(m.Body, v); err != nil {
		return wrapMalformed(err)
	}
	return nil
}

// Envelope is the wire wrapper for encrypted payloads.
type Envelope struct {
	Encrypted bool   `json:"encrypted"`
	Data      string `json:"data"`
}

// HeartbeatPayload is published on device/{id}/heartbeat.
type HeartbeatPayload struct {
	Stats map[string]any `json:"stats,omitempty"`
}

// Device status values carried by StatusPayload.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusError   = "error"
)

// StatusPayload is published on device/{id}/status.
type StatusPayload struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// AccessRequestPayload is published on device/{id}/access when a card is
// presented.
type AccessRequestPayload struct {
	CardID    string `json:"cardId"`
	DoorID    string `json:"doorId"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// EventPayload is published on device/{id}/event.
type EventPayload struct {
	EventType string         `json:"eventType"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp *int64         `json:"timestamp,omitempty"`
}

// CommandPayload is published on device/{id}/command.
type CommandPayload struct {
	// ID is unique per command so a device can drop QoS 1 redeliveries.
	ID        string         `json:"id"`
	Command   string         `json:"command"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

// EpochMillis converts t to the millisecond timestamps used on the wire.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// TimeOr returns the device-supplied millisecond timestamp, or fallback
// when the device sent none.
func TimeOr(ms *int64, fallback time.Time) time.Time {
	if ms == nil || *ms <= 0 {
		return fallback
	}
	return time.UnixMilli(*ms).UTC()
}

// DetailString returns details[key] when it is a non-empty string.
func DetailString(details map[string]any, key string) (string, bool) {
	v, ok := details[key].(string)
	return v, ok && v != ""
}
