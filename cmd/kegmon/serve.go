package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/keg-monitor-core/internal/api"
	"github.com/nerrad567/keg-monitor-core/internal/audit"
	"github.com/nerrad567/keg-monitor-core/internal/auth"
	"github.com/nerrad567/keg-monitor-core/internal/command"
	"github.com/nerrad567/keg-monitor-core/internal/device"
	"github.com/nerrad567/keg-monitor-core/internal/events"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/database"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/logging"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/keg-monitor-core/internal/provider"
	"github.com/nerrad567/keg-monitor-core/internal/provider/particle"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

// runServe wires every component and blocks until ctx is cancelled.
// Deferred closes run in reverse order: API, InfluxDB, MQTT, activity
// recorder, database.
func runServe(ctx context.Context, opts *options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting keg monitor core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := opts.loadConfig(log)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	devices := device.NewSQLiteRepository(db.DB)
	measurements := device.NewSQLiteMeasurementRepository(db.DB)
	users := auth.NewUserRepository(db.DB)
	services := auth.NewServiceAccountRepository(db.DB)

	registry := newProviderRegistry(cfg.Providers, log)

	activity := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(activity)
	recorder.SetLogger(log.Component("activity"))
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	recorderDone := make(chan struct{})
	go func() {
		recorder.Run(recorderCtx)
		close(recorderDone)
	}()
	// Runs before the database closes so queued entries are written.
	defer func() {
		stopRecorder()
		<-recorderDone
	}()

	hub := api.NewHub(cfg.WebSocket, log)
	publishers := events.Fanout{hub, recorder}

	deps := api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Volume:       cfg.Volume,
		Logger:       log,
		Devices:      devices,
		Measurements: measurements,
		Users:        users,
		Resolver: auth.NewResolver(
			auth.UserLookup(users),
			api.DeviceLookup(devices),
			auth.ServiceAccountLookup(services),
		),
		Provider: registry,
		Activity: activity,
		Hub:      hub,
		DB:       db.DB,
		Version:  version,
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()

		pub := mqtt.NewEventPublisher(mqttClient, mqttClient.Topics())
		pub.SetLogger(log.Component("mqtt"))
		publishers = append(publishers, pub)
		deps.MQTT = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		publishers = append(publishers, influxdb.NewEventSink(influxClient))
		deps.InfluxDB = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	commands := command.NewService(registry, devices, publishers)
	commands.SetLogger(log.Component("command"))
	deps.Commands = commands
	deps.Events = publishers

	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// newProviderRegistry registers the device cloud integrations.
func newProviderRegistry(cfg config.ProvidersConfig, log *logging.Logger) *provider.Registry {
	registry := provider.NewRegistry()
	registry.SetLogger(log.Component("provider"))

	particleLog := log.Component(particle.ProviderName)
	client := particle.NewClient(cfg.Particle)
	client.SetLogger(particleLog)
	capability := particle.NewCapability(client)
	capability.SetLogger(particleLog)
	particle.Register(registry, capability)

	log.Info("device cloud registered",
		"provider", particle.ProviderName,
		"base_url", cfg.Particle.BaseURL,
		"device_services_enabled", cfg.Particle.DeviceServicesEnabled,
	)
	return registry
}

func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client, nil
}

// healthCheck verifies all infrastructure connections are healthy. The
// optional clients may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
