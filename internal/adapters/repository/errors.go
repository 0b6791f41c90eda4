package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound    = errors.New("record not found")
	ErrOpenMatch   = errors.New("requester already has an open match")
	ErrUnavailable = errors.New("persistence unavailable")
)
