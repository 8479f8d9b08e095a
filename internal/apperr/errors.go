// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrConflict           = errors.New("conflict")
	ErrDuplicateWidgetKey = errors.New("duplicate widget key")
	ErrInvalid            = errors.New("invalid input")
)
