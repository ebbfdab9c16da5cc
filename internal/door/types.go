package door

import (
	"time"
)

// Status is the lock state of a door.
type Status string

// Door statuses. A door is always in exactly one of these.
const (
	StatusLocked   Status = "locked"
	StatusUnlocked Status = "unlocked"
)

// Valid reports whether s is a known door status.
func (s Status) Valid() bool {
	return s == StatusLocked || s == StatusUnlocked
}

// DefaultAutoLockDelay is the relock delay (seconds) for doors created without one.
const DefaultAutoLockDelay = 5

// Door is a physical door controlled by at most one device.
type Door struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Status   Status  `json:"status"`
	DeviceID *string `json:"device_id,omitempty"`

	// Schedule restricts when access is granted. Nil means always.
	Schedule *Schedule `json:"schedule,omitempty"`

	AutoLock      bool `json:"auto_lock"`
	AutoLockDelay int  `json:"auto_lock_delay"`

	// StatusChangedBy is the user, device or operator behind the last transition.
	StatusChangedBy string     `json:"status_changed_by,omitempty"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Schedule holds the allowed access window per day class.
type Schedule struct {
	Weekdays *Window `json:"weekdays,omitempty"`
	Weekends *Window `json:"weekends,omitempty"`
}

// Window is an inclusive range of zero-padded "HH:MM" local times.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// For returns the window that applies on the given weekday, or nil when the
// schedule does not restrict that day. Saturday and Sunday are weekends.
func (s *Schedule) For(day time.Weekday) *Window {
	if s == nil {
		return nil
	}
	if day == time.Saturday || day == time.Sunday {
		return s.Weekends
	}
	return s.Weekdays
}

// Contains reports whether hhmm lies within the window, bounds included.
// Zero-padded "HH:MM" strings order lexically the same as chronologically.
func (w Window) Contains(hhmm string) bool {
	return hhmm >= w.Start && hhmm <= w.End
}
