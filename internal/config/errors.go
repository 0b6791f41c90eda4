package config

import "errors"

// Sentinels callers can match with errors.Is.
var (
	// ErrInvalidConfig marks a configuration that failed Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a failure reading or merging configuration sources.
	ErrLoadConfig = errors.New("load config failed")
)
