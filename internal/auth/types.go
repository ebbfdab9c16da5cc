package auth

import (
	"time"
)

// UserStatus is the account state of a card holder.
type UserStatus string

const (
	// UserActive may be granted access.
	UserActive UserStatus = "active"

	// UserInactive is a dormant account (left, on leave). Always denied.
	UserInactive UserStatus = "inactive"

	// UserSuspended is an account blocked by an administrator. Always denied.
	UserSuspended UserStatus = "suspended"
)

// Valid reports whether s is a known user status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserActive, UserInactive, UserSuspended:
		return true
	}
	return false
}

// AccessLevel labels a permission grant. The core records it but does not
// branch on it.
type AccessLevel string

// Access levels used by the administration surface.
const (
	AccessStandard AccessLevel = "standard"
	AccessAdmin    AccessLevel = "admin"
)

// User is a card holder.
type User struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Email   string     `json:"email,omitempty"`
	CardUID *string    `json:"card_uid,omitempty"`
	Status  UserStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the user may be granted access at all.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserActive
}

// Permission grants one user access to one door.
type Permission struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	DoorID            string      `json:"door_id"`
	AccessLevel       AccessLevel `json:"access_level"`
	CanUnlockRemotely bool        `json:"can_unlock_remotely"`

	// ScheduleOverride lets the holder in outside the door's schedule.
	ScheduleOverride bool `json:"schedule_override"`

	// ExpiresAt ends the grant. Nil never expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ExpiredAt reports whether the grant has lapsed at the given instant.
// A grant is valid up to, but not including, its expiry.
func (p *Permission) ExpiredAt(at time.Time) bool {
	return p.ExpiresAt != nil && !at.Before(*p.ExpiresAt)
}
