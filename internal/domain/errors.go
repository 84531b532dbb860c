package domain

import "errors"

var (
	// ErrSessionNotActive is returned when an operation targets a session
	// that is unknown or already ended.
	ErrSessionNotActive = errors.New("session not active")
	// ErrSessionExists is returned when starting a session whose id is already active.
	ErrSessionExists = errors.New("session already active")
	// ErrInvalidAction is returned for actions that cannot be decoded.
	ErrInvalidAction = errors.New("invalid action")
)
