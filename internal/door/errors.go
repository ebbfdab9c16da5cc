package door

import "errors"

// Domain errors for the door package.
var (
	// ErrDoorNotFound is returned when a door ID does not exist.
	ErrDoorNotFound = errors.New("door: not found")

	// ErrDoorExists is returned when creating a door with an ID that already exists.
	ErrDoorExists = errors.New("door: already exists")

	// ErrDeviceAlreadyBound is returned when the device already drives another door.
	ErrDeviceAlreadyBound = errors.New("door: device already bound to another door")

	// ErrInvalidDoor is returned when door validation fails.
	ErrInvalidDoor = errors.New("door: invalid")

	// ErrInvalidStatus is returned when a status value is not locked or unlocked.
	ErrInvalidStatus = errors.New("door: invalid status")

	// ErrInvalidSchedule is returned when a schedule window is malformed.
	ErrInvalidSchedule = errors.New("door: invalid schedule")
)
