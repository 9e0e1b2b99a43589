package service

import "errors"

var (
	ErrNotFound          = errors.New("error not found")
	ErrUserNotRegistered = errors.New("error user is not registered")
	ErrEmptyPortfolio    = errors.New("error portfolio has no holdings")
	ErrInvalidHolding    = errors.New("error invalid holding")
)
