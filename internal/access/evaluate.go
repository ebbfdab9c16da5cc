package access

import (
	"time"

	"github.com/nerrad567/doorgate-core/internal/door"
)

// Evaluate decides an attempt from already-resolved inputs. It has no side
// effects: identical inputs always yield an identical decision.
//
// Checks run in order and the first failure wins: door, identity, user
// status, permission (missing or expired), schedule.
func Evaluate(in Inputs) Decision {
	if in.Door == nil {
		return Decision{Reason: ReasonDoorNotFound}
	}
	d := Decision{DoorID: in.Door.ID}

	if in.User == nil {
		d.Reason = ReasonUnauthorizedCard
		return d
	}
	d.UserID = in.User.ID

	if !in.User.IsActive() {
		d.Reason = ReasonUserInactive
		return d
	}

	if in.Permission == nil || in.Permission.ExpiredAt(in.At) {
		d.Reason = ReasonNoPermission
		return d
	}

	if !in.Permission.ScheduleOverride {
		loc := in.Location
		if loc == nil {
			loc = time.UTC
		}
		if !InSchedule(in.Door.Schedule, in.At.In(loc)) {
			d.Reason = ReasonOutsideSchedule
			return d
		}
	}

	d.Granted = true
	return d
}

// InSchedule reports whether t, already in the site's local zone, falls in
// the schedule window for its day. A nil schedule, or a day class without a
// window, imposes no restriction.
func InSchedule(s *door.Schedule, t time.Time) bool {
	w := s.For(t.Weekday())
	if w == nil {
		return true
	}
	return w.Contains(t.Format("15:04"))
}
