package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrContentEmpty   = errors.New("message content is empty")
	ErrContentTooLong = errors.New("message content is too long")
	ErrInvalidStatus  = errors.New("invalid status")
)
