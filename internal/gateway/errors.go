package gateway

import "errors"

var (
	// ErrClosed is returned by Connect after Disconnect.
	ErrClosed = errors.New("gateway: connection manager closed")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("gateway: already started")

	// ErrInvalidRequest is returned by remote operations given missing arguments.
	ErrInvalidRequest = errors.New("gateway: invalid request")
)
