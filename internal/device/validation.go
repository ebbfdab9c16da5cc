package device

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxFirmwareLength = 64
)

var macRegex = regexp.MustCompile(`^[0-9A-Fa-f]{2}(:[0-9A-Fa-f]{2}){5}$`)

// ValidateDevice checks a device before it is persisted.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if d.MACAddress != "" && !macRegex.MatchString(d.MACAddress) {
		return fmt.Errorf("%w: %q", ErrInvalidMAC, d.MACAddress)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}
	if len(d.FirmwareVersion) > maxFirmwareLength {
		return fmt.Errorf("%w: firmware version exceeds %d characters", ErrInvalidDevice, maxFirmwareLength)
	}
	if d.DoorID != nil && strings.TrimSpace(*d.DoorID) == "" {
		return fmt.Errorf("%w: door id must not be blank", ErrInvalidDevice)
	}
	return nil
}

// ValidateName checks that a device name is present and within limits.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}
