// Package logging provides structured logging for the keg monitor core.
//
// It wraps log/slog so every component logs through the same handler with
// the same default fields (service, version).
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log API keys, Particle access tokens or password material.
// Log a key prefix instead:
//
//	logger.Info("device authenticated", "device_id", dev.ID)
package logging
