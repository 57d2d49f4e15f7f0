package provider

import "errors"

var (
	// ErrDisabled is returned when device services are switched off in config.
	ErrDisabled = errors.New("provider: device services disabled")

	// ErrNotConfigured is returned when the provider has no API key.
	ErrNotConfigured = errors.New("provider: not configured")
)
