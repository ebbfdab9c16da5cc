package access

import (
	"time"

	"github.com/nerrad567/doorgate-core/internal/auth"
	"github.com/nerrad567/doorgate-core/internal/door"
)

// Deny reasons. A granted decision carries no reason.
const (
	ReasonDoorNotFound     = "door_not_found"
	ReasonUnauthorizedCard = "unauthorized_card"
	ReasonUserInactive     = "user_inactive"
	ReasonNoPermission     = "no_permission"
	ReasonOutsideSchedule  = "outside_schedule"
)

// Attempt is one request to pass a door.
//
// A device-originated attempt carries CardUID; an administrative check
// carries UserID instead. DeviceID is empty when no controller is involved.
type Attempt struct {
	CardUID  string
	UserID   string
	DoorID   string
	DeviceID string

	// At is when the attempt happened. Zero means now.
	At time.Time
}

// Decision is the outcome of one attempt.
type Decision struct {
	Granted bool   `json:"granted"`
	Reason  string `json:"reason,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	DoorID  string `json:"door_id"`
}

// Inputs are the resolved facts a decision is made from. Nil means the
// lookup found nothing.
type Inputs struct {
	Door       *door.Door
	User       *auth.User
	Permission *auth.Permission

	// At is the decision instant; Location is the site's local time zone
	// used for schedule windows. A nil Location means UTC.
	At       time.Time
	Location *time.Location
}
