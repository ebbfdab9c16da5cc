package device

import "time"

// Status is the connectivity state of a door controller.
type Status string

// Device statuses.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// AllStatuses returns every valid device status.
func AllStatuses() []Status {
	return []Status{StatusOnline, StatusOffline, StatusError}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusError:
		return true
	}
	return false
}

// Device is an RFID reader / door controller attached to the broker.
// This matches the devices table in migrations/20260301_090000_access_schema.up.sql.
type Device struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MACAddress string `json:"mac_address,omitempty"`

	Status        Status     `json:"status"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`

	FirmwareVersion string `json:"firmware_version,omitempty"`

	// DoorID is the door this controller drives. At most one door per device.
	DoorID *string `json:"door_id,omitempty"`

	// EncryptionEnabled selects the encrypted envelope for outbound commands.
	EncryptionEnabled bool `json:"encryption_enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy of the device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cp := *d
	if d.LastHeartbeat != nil {
		t := *d.LastHeartbeat
		cp.LastHeartbeat = &t
	}
	if d.DoorID != nil {
		s := *d.DoorID
		cp.DoorID = &s
	}
	return &cp
}
