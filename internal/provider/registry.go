package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/nerrad567/keg-monitor-core/internal/device"
)

// DefaultModel is the model key of a provider's fallback capability.
const DefaultModel = "_default_"

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Capability implements operations for one provider, optionally one model.
//
// Get serves the read family and Run the firmware functions. Both return
// nil when the provider has no answer (disabled, unreachable, unknown
// device); transport failures come back as an Outcome with an error.
type Capability interface {
	Supports(op Operation) bool
	Get(ctx context.Context, op Operation, dev *device.Device, args ...string) *Outcome
	Run(ctx context.Context, op Operation, dev *device.Device, args ...string) *Outcome
}

// Registry maps (provider, model) pairs to capabilities.
//
// All public methods are thread-safe.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]map[string]Capability
	logger    Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]map[string]Capability),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register installs c for provider and model. An empty model registers the
// provider default.
func (r *Registry) Register(provider, model string, c Capability) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		model = DefaultModel
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	models, ok := r.providers[provider]
	if !ok {
		models = make(map[string]Capability)
		r.providers[provider] = models
	}
	models[model] = c
}

// Lookup finds the capability serving op: the model-specific one when it
// supports op, otherwise the provider default when that does.
func (r *Registry) Lookup(provider, model string, op Operation) (Capability, bool) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.ToLower(strings.TrimSpace(model))

	r.mu.RLock()
	defer r.mu.RUnlock()

	models, ok := r.providers[provider]
	if !ok {
		return nil, false
	}
	if model != "" {
		if c, ok := models[model]; ok && c.Supports(op) {
			return c, true
		}
	}
	if c, ok := models[DefaultModel]; ok && c.Supports(op) {
		return c, true
	}
	return nil, false
}

// Dispatch runs op for dev through the matching capability. A missing
// provider or unsupported operation is logged and returns nil.
func (r *Registry) Dispatch(ctx context.Context, provider, model string, op Operation, dev *device.Device, args ...string) *Outcome {
	c, ok := r.Lookup(provider, model, op)
	if !ok {
		r.logger.Info("no capability for operation",
			"provider", provider,
			"model", model,
			"operation", string(op),
		)
		return nil
	}
	if op.IsRead() {
		return c.Get(ctx, op, dev, args...)
	}
	return c.Run(ctx, op, dev, args...)
}

// DispatchDevice is Dispatch keyed by the device's own chip type and model.
func (r *Registry) DispatchDevice(ctx context.Context, op Operation, dev *device.Device, args ...string) *Outcome {
	return r.Dispatch(ctx, dev.ChipType, dev.ChipModel, op, dev, args...)
}
