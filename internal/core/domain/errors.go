package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("validation failed")
	ErrInactiveUser        = errors.New("user is not active")
	ErrLocationUnavailable = errors.New("viewer location unavailable")
)
