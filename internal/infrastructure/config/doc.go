// Package config loads and validates keg monitor core configuration.
//
// Values come from three layers, later layers winning:
//   - built-in defaults
//   - a YAML file (configs/config.yaml by default)
//   - KEGMON_* environment variables
//
// Secrets (JWT secret, Particle access token, MQTT and InfluxDB credentials)
// should be supplied through the environment rather than the file.
//
// The resulting *Config is read-only after startup and is handed to each
// component at construction time.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	client := particle.NewClient(cfg.Providers.Particle)
package config
