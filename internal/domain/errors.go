package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
	ErrLimitReached       = errors.New("limit reached")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrMissingDependency  = errors.New("missing dependency")
)
