package domain

import "errors"

var (
	ErrInvalidEntry   = errors.New("invalid entry")
	ErrUnknownList    = errors.New("unknown list")
	ErrInvalidSession = errors.New("invalid session id")
	ErrNotFound       = errors.New("entry not found")
)
