package auth

import "errors"

// Authentication and authorisation errors.
var (
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrCardInUse          = errors.New("auth: card already assigned")
	ErrInvalidUser        = errors.New("auth: invalid user")
	ErrPermissionNotFound = errors.New("auth: permission not found")
	ErrPermissionExists   = errors.New("auth: permission already exists")
	ErrInvalidPermission  = errors.New("auth: invalid permission")
)
