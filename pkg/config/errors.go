package config

import "errors"

// Config errors.
var (
	// ErrInvalidFile is returned when a configuration file cannot be parsed.
	ErrInvalidFile = errors.New("config: invalid configuration file")

	// ErrInvalidMapping is returned when a static mapping entry is malformed.
	ErrInvalidMapping = errors.New("config: invalid static mapping")
)
