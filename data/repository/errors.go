package repository

import "errors"

var (
	// ErrAlreadyExists is returned when a unique key, e.g. a chat id, is taken.
	ErrAlreadyExists = errors.New("error already exists")
	ErrNotFound      = errors.New("error not found")
	// ErrConstraint is returned when a row breaks a CHECK constraint of its table.
	ErrConstraint    = errors.New("error constraint violation")
)
