package command

import "errors"

// Dispatch errors.
var (
	// ErrNoDevice is returned when a command has no target device.
	ErrNoDevice = errors.New("command: no target device")

	// ErrUnknownCommand is returned for a command name devices do not understand.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrSendFailed is returned when the transport refuses the publish.
	ErrSendFailed = errors.New("command: send failed")
)
