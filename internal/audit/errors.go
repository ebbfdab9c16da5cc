package audit

import "errors"

// ErrInvalidEntry is returned when an entry lacks its actor or action.
var ErrInvalidEntry = errors.New("audit: invalid entry")
