package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/keg-monitor-core/internal/audit"
	"github.com/nerrad567/keg-monitor-core/internal/auth"
	"github.com/nerrad567/keg-monitor-core/internal/command"
	"github.com/nerrad567/keg-monitor-core/internal/device"
	"github.com/nerrad567/keg-monitor-core/internal/events"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/logging"
	"github.com/nerrad567/keg-monitor-core/internal/provider"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceProvider answers read operations against a device's cloud.
// *provider.Registry implements it.
type DeviceProvider interface {
	DispatchDevice(ctx context.Context, op provider.Operation, dev *device.Device, args ...string) *provider.Outcome
}

// Connectivity is implemented by the optional broker and telemetry clients.
type Connectivity interface {
	IsConnected() bool
}

// DBStats is implemented by *sql.DB.
type DBStats interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Volume   config.VolumeConfig
	Logger   *logging.Logger

	Devices      device.Repository
	Measurements device.MeasurementRepository
	Users        auth.UserRepository
	Resolver     *auth.Resolver
	Provider     DeviceProvider
	Commands     *command.Service

	// Activity serves the device activity trail. Optional.
	Activity audit.Repository

	// Hub receives realtime events. Created when nil.
	Hub *Hub

	// Events receives every event the handlers raise. Defaults to Hub.
	Events events.Publisher

	// Optional components reported by /metrics.
	MQTT     Connectivity
	InfluxDB Connectivity
	DB       DBStats

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	volumeCfg config.VolumeConfig
	logger    *logging.Logger

	devices      device.Repository
	measurements device.MeasurementRepository
	users        auth.UserRepository
	resolver     *auth.Resolver
	provider     DeviceProvider
	commands     *command.Service
	activity     audit.Repository
	events       events.Publisher

	mqtt     Connectivity
	influxdb Connectivity
	db       DBStats

	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	tickets   *ticketStore
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Devices == nil || deps.Measurements == nil:
		return nil, fmt.Errorf("device repositories are required")
	case deps.Users == nil || deps.Resolver == nil:
		return nil, fmt.Errorf("user repository and resolver are required")
	case deps.Provider == nil || deps.Commands == nil:
		return nil, fmt.Errorf("device provider and command service are required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = hub
	}

	return &Server{
		cfg:          deps.Config,
		secCfg:       deps.Security,
		volumeCfg:    deps.Volume,
		logger:       deps.Logger,
		devices:      deps.Devices,
		measurements: deps.Measurements,
		users:        deps.Users,
		resolver:     deps.Resolver,
		provider:     deps.Provider,
		commands:     deps.Commands,
		activity:     deps.Activity,
		events:       publisher,
		mqtt:         deps.MQTT,
		influxdb:     deps.InfluxDB,
		db:           deps.DB,
		version:      deps.Version,
		startTime:    time.Now(),
		hub:          hub,
		tickets:      newTicketStore(),
	}, nil
}

// Start runs the hub and ticket cleanup, then launches the HTTP listener in
// a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// publish raises an event. Never fails the request.
func (s *Server) publish(ctx context.Context, e events.Event) {
	s.events.Publish(ctx, e)
}
