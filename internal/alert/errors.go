package alert

import "errors"

// Domain errors for the alert package.
var (
	// ErrAlertNotFound is returned when an alert ID does not exist.
	ErrAlertNotFound = errors.New("alert: not found")

	// ErrAlreadyResolved is returned when resolving an alert twice.
	ErrAlreadyResolved = errors.New("alert: already resolved")

	// ErrInvalidAlert is returned when an alert lacks its type, message or severity.
	ErrInvalidAlert = errors.New("alert: invalid")
)
