package door

import (
	"fmt"
	"regexp"
	"strings"
)

const maxAutoLockDelay = 3600

var hhmmRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidateDoor checks a door before it is persisted.
func ValidateDoor(d *Door) error {
	if d == nil {
		return ErrInvalidDoor
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDoor)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDoor)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}
	if d.AutoLockDelay < 0 || d.AutoLockDelay > maxAutoLockDelay {
		return fmt.Errorf("%w: auto_lock_delay must be between 0 and %d", ErrInvalidDoor, maxAutoLockDelay)
	}
	return ValidateSchedule(d.Schedule)
}

// ValidateSchedule checks every present window is zero-padded HH:MM with
// start not after end. A nil schedule is valid.
func ValidateSchedule(s *Schedule) error {
	if s == nil {
		return nil
	}
	for name, w := range map[string]*Window{"weekdays": s.Weekdays, "weekends": s.Weekends} {
		if w == nil {
			continue
		}
		if !hhmmRegex.MatchString(w.Start) || !hhmmRegex.MatchString(w.End) {
			return fmt.Errorf("%w: %s window must use HH:MM", ErrInvalidSchedule, name)
		}
		if w.Start > w.End {
			return fmt.Errorf("%w: %s window starts after it ends", ErrInvalidSchedule, name)
		}
	}
	return nil
}
