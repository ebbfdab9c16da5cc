package alert

import "time"

// Severity ranks how urgently an alert needs attention.
type Severity string

// Severities, least to most urgent.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityWarning, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Alert types raised by the gateway.
const (
	TypeDoorForced           = "door_forced"
	TypeTamperDetected       = "tamper_detected"
	TypeDoorLeftOpen         = "door_left_open"
	TypePowerIssue           = "power_issue"
	TypeDeviceOffline        = "device_offline"
	TypeUnauthorizedAccess   = "unauthorized_access"
	TypeMQTTConnectionFailed = "MQTT_CONNECTION_FAILED"

	// TypeDeviceEvent carries a device event the gateway has no rule for.
	TypeDeviceEvent = "device_event"
)

var severities = map[string]Severity{
	TypeDoorForced:           SeverityCritical,
	TypeTamperDetected:       SeverityCritical,
	TypeDoorLeftOpen:         SeverityWarning,
	TypePowerIssue:           SeverityWarning,
	TypeDeviceOffline:        SeverityWarning,
	TypeUnauthorizedAccess:   SeverityMedium,
	TypeMQTTConnectionFailed: SeverityCritical,
}

// SeverityFor returns the fixed severity for an alert type, or low for
// anything without a rule.
func SeverityFor(alertType string) Severity {
	if s, ok := severities[alertType]; ok {
		return s
	}
	return SeverityLow
}

// Related names the entities an alert concerns. All fields are optional.
type Related struct {
	DeviceID string
	DoorID   string
	UserID   string
	Details  map[string]any
}

// Alert is a persisted operator notification.
type Alert struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	Resolved   bool           `json:"resolved"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy string         `json:"resolved_by,omitempty"`
	DeviceID   string         `json:"device_id,omitempty"`
	DoorID     string         `json:"door_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
