package command

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/keg-monitor-core/internal/device"
	"github.com/nerrad567/keg-monitor-core/internal/events"
	"github.com/nerrad567/keg-monitor-core/internal/provider"
)

// RPCOperations are the operations callers may invoke over the API.
var RPCOperations = []provider.Operation{
	provider.OpPing,
	provider.OpStartCalibration,
	provider.OpCancelCalibration,
	provider.OpCalibrate,
	provider.OpTare,
	provider.OpClearMemory,
	provider.OpSendMostRecentSample,
	provider.OpStartMaintenanceMode,
	provider.OpStopMaintenanceMode,
}

// Allowed reports whether op may be invoked over the API.
func Allowed(op provider.Operation) bool {
	for _, a := range RPCOperations {
		if a == op {
			return true
		}
	}
	return false
}

// Dispatcher routes an operation to the device's provider.
type Dispatcher interface {
	DispatchDevice(ctx context.Context, op provider.Operation, dev *device.Device, args ...string) *provider.Outcome
}

// StateStore persists device state codes.
type StateStore interface {
	UpdateState(ctx context.Context, id string, state device.State) error
}

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Result is what a command produced.
type Result struct {
	// Outcome is the provider's answer to the command itself. Nil when the
	// provider had no answer.
	Outcome *provider.Outcome

	// State is the device state after the command.
	State device.State

	// StateChanged is true when a new state was persisted.
	StateChanged bool

	// Reconciled is true when an ambiguous answer was resolved by pulling state.
	Reconciled bool
}

// Service executes commands against devices.
type Service struct {
	dispatcher Dispatcher
	store      StateStore
	publisher  events.Publisher
	logger     Logger
	locks      *keyedMutex
}

// NewService creates a command service. A nil publisher discards events.
func NewService(dispatcher Dispatcher, store StateStore, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{
		dispatcher: dispatcher,
		store:      store,
		publisher:  publisher,
		logger:     noopLogger{},
		locks:      newKeyedMutex(),
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// Run executes op against dev. dev.State is updated in place when the
// persisted state changes.
func (s *Service) Run(ctx context.Context, dev *device.Device, op provider.Operation, args ...string) (*Result, error) {
	if !Allowed(op) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, op)
	}
	if op == provider.OpCalibrate && (len(args) == 0 || args[0] == "") {
		return nil, fmt.Errorf("%w: calibrate requires a value", ErrMissingArgument)
	}

	unlock := s.locks.Lock(dev.ID)
	defer unlock()

	started := time.Now()
	outcome := s.dispatcher.DispatchDevice(ctx, op, dev, args...)
	result := &Result{Outcome: outcome, State: dev.State}

	s.logger.Debug("device command executed",
		"device_id", dev.ID,
		"operation", string(op),
		"return_value", outcome.Value(),
		"duration", time.Since(started),
	)

	switch {
	case outcome == nil, outcome.Failed():
		return result, nil
	case outcome.Ambiguous():
		s.reconcile(ctx, dev, result)
	}
	return result, nil
}

// ReportState records a state the device reported itself.
func (s *Service) ReportState(ctx context.Context, dev *device.Device, st device.State) (*Result, error) {
	if !st.Valid() {
		return nil, fmt.Errorf("%w: %d", device.ErrInvalidState, st)
	}
	unlock := s.locks.Lock(dev.ID)
	defer unlock()

	result := &Result{State: dev.State}
	if err := s.store.UpdateState(ctx, dev.ID, st); err != nil {
		return nil, fmt.Errorf("updating device state: %w", err)
	}
	s.applied(ctx, dev, st, result)
	return result, nil
}

func (s *Service) reconcile(ctx context.Context, dev *device.Device, result *Result) {
	pulled := s.dispatcher.DispatchDevice(ctx, provider.OpPullState, dev)
	if pulled == nil || pulled.Failed() || pulled.ReturnValue == nil || pulled.Ambiguous() {
		msg := ""
		if pulled != nil {
			msg = pulled.ErrorMessage
		}
		s.logger.Warn("unable to reconcile device state", "device_id", dev.ID, "error", msg)
		return
	}

	st := device.State(*pulled.ReturnValue)
	if !st.Valid() {
		s.logger.Warn("device reported unknown state", "device_id", dev.ID, "state", int(st))
		return
	}
	if s.persist(ctx, dev, st, result) {
		result.Reconciled = true
	}
}

func (s *Service) persist(ctx context.Context, dev *device.Device, st device.State, result *Result) bool {
	if err := s.store.UpdateState(ctx, dev.ID, st); err != nil {
		s.logger.Error("persisting device state", "device_id", dev.ID, "state", int(st), "error", err)
		return false
	}

	s.applied(ctx, dev, st, result)
	return true
}

// applied records st on dev and result and announces it.
func (s *Service) applied(ctx context.Context, dev *device.Device, st device.State, result *Result) {
	previous := dev.State
	dev.State = st
	result.State = st
	result.StateChanged = previous != st

	s.publisher.Publish(ctx, events.New(events.TypeDeviceStateChanged, dev.ID, events.StatePayload{
		State:     int(st),
		StateName: st.String(),
		Previous:  int(previous),
	}))
}
