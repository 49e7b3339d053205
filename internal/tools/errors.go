package tools

import "errors"

var (
	// ErrToolNotFound indicates a lookup for an unregistered tool name.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyRegistered indicates a duplicate registration.
	ErrToolAlreadyRegistered = errors.New("tool already registered")
)
