package command

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/keg-monitor-core/internal/device"
	"github.com/nerrad567/keg-monitor-core/internal/events"
	"github.com/nerrad567/keg-monitor-core/internal/provider"
)

// scriptedDispatcher answers each operation from a fixed table.
type scriptedDispatcher struct {
	mu       sync.Mutex
	answers  map[provider.Operation]*provider.Outcome
	calls    []provider.Operation
	hold     chan struct{}
	inFlight int32
	maxSeen  int32
}

func (d *scriptedDispatcher) DispatchDevice(_ context.Context, op provider.Operation, _ *device.Device, _ ...string) *provider.Outcome {
	n := atomic.AddInt32(&d.inFlight, 1)
	defer atomic.AddInt32(&d.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&d.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&d.maxSeen, seen, n) {
			break
		}
	}
	if d.hold != nil {
		<-d.hold
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, op)
	return d.answers[op]
}

type memStore struct {
	mu     sync.Mutex
	states map[string]device.State
	err    error
}

func (m *memStore) UpdateState(_ context.Context, id string, st device.State) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states == nil {
		m.states = make(map[string]device.State)
	}
	m.states[id] = st
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func newDevice() *device.Device {
	return &device.Device{ID: "dev-1", ChipType: "particle", ChipID: "chip", State: device.StateMaintenanceModeEnabled}
}

func TestRun_AmbiguousReconciles(t *testing.T) {
	disp := &scriptedDispatcher{answers: map[provider.Operation]*provider.Outcome{
		provider.OpStopMaintenanceMode: {ReturnValue: provider.IntPtr(provider.AmbiguousReturn)},
		provider.OpPullState:           {ReturnValue: provider.IntPtr(1)},
	}}
	store := &memStore{}
	rec := &recorder{}
	svc := NewService(disp, store, rec)

	dev := newDevice()
	res, err := svc.Run(context.Background(), dev, provider.OpStopMaintenanceMode)
	require.NoError(t, err)

	assert.True(t, res.Reconciled)
	assert.True(t, res.StateChanged)
	assert.Equal(t, device.StateReady, res.State)
	assert.Equal(t, device.StateReady, dev.State)
	assert.Equal(t, device.StateReady, store.states["dev-1"])
	assert.Equal(t, []provider.Operation{provider.OpStopMaintenanceMode, provider.OpPullState}, disp.calls)
	assert.False(t, res.Outcome.Failed(), "the original command is still accepted")

	require.Len(t, rec.events, 1)
	assert.Equal(t, events.TypeDeviceStateChanged, rec.events[0].Type)
	payload, ok := rec.events[0].Payload.(events.StatePayload)
	require.True(t, ok)
	assert.Equal(t, 1, payload.State)
	assert.Equal(t, 99, payload.Previous)
}

func TestRun_ReconcileFailureLeavesDevice(t *testing.T) {
	tests := []struct {
		name   string
		pulled *provider.Outcome
		store  *memStore
	}{
		{"no answer", nil, &memStore{}},
		{"pull failed", &provider.Outcome{ReturnValue: provider.IntPtr(-5), ErrorMessage: "Unknown error code: -5", HTTPStatus: 424}, &memStore{}},
		{"unknown state", &provider.Outcome{ReturnValue: provider.IntPtr(42)}, &memStore{}},
		{"store error", &provider.Outcome{ReturnValue: provider.IntPtr(1)}, &memStore{err: errors.New("disk full")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disp := &scriptedDispatcher{answers: map[provider.Operation]*provider.Outcome{
				provider.OpTare:      {ReturnValue: provider.IntPtr(provider.AmbiguousReturn)},
				provider.OpPullState: tt.pulled,
			}}
			rec := &recorder{}
			svc := NewService(disp, tt.store, rec)

			dev := newDevice()
			res, err := svc.Run(context.Background(), dev, provider.OpTare)
			require.NoError(t, err)
			assert.False(t, res.Reconciled)
			assert.Equal(t, device.StateMaintenanceModeEnabled, dev.State)
			assert.Empty(t, rec.events)
		})
	}
}

func TestRun_PlainOutcomes(t *testing.T) {
	disp := &scriptedDispatcher{answers: map[provider.Operation]*provider.Outcome{
		provider.OpTare:      {ReturnValue: provider.IntPtr(1), HTTPStatus: 200},
		provider.OpCalibrate: {ReturnValue: provider.IntPtr(-1), ErrorMessage: "Invalid calibration value.  Requires a float", HTTPStatus: 400},
	}}
	store := &memStore{}
	svc := NewService(disp, store, nil)
	dev := newDevice()

	res, err := svc.Run(context.Background(), dev, provider.OpTare)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Outcome.Value())
	assert.False(t, res.StateChanged)

	res, err = svc.Run(context.Background(), dev, provider.OpCalibrate, "abc")
	require.NoError(t, err)
	assert.True(t, res.Outcome.Failed())
	assert.Equal(t, 400, res.Outcome.Status())

	res, err = svc.Run(context.Background(), dev, provider.OpPing)
	require.NoError(t, err)
	assert.Nil(t, res.Outcome)

	assert.Empty(t, store.states)
	assert.NotContains(t, disp.calls, provider.OpPullState)
}

func TestRun_Rejections(t *testing.T) {
	svc := NewService(&scriptedDispatcher{}, &memStore{}, nil)

	_, err := svc.Run(context.Background(), newDevice(), provider.OpPullState)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	_, err = svc.Run(context.Background(), newDevice(), provider.Operation("get_details"))
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	_, err = svc.Run(context.Background(), newDevice(), provider.OpCalibrate)
	assert.ErrorIs(t, err, ErrMissingArgument)
}

func TestAllowed(t *testing.T) {
	for _, op := range []provider.Operation{
		provider.OpPing, provider.OpStartCalibration, provider.OpCancelCalibration, provider.OpCalibrate,
		provider.OpTare, provider.OpClearMemory, provider.OpSendMostRecentSample,
		provider.OpStartMaintenanceMode, provider.OpStopMaintenanceMode,
	} {
		assert.True(t, Allowed(op), op)
	}
	for _, op := range []provider.Operation{provider.OpPullState, provider.OpGetDetails, provider.OpOnline, "reboot"} {
		assert.False(t, Allowed(op), op)
	}
}

func TestReportState(t *testing.T) {
	store := &memStore{}
	rec := &recorder{}
	svc := NewService(&scriptedDispatcher{}, store, rec)
	dev := newDevice()

	res, err := svc.ReportState(context.Background(), dev, device.StateCalibrating)
	require.NoError(t, err)
	assert.True(t, res.StateChanged)
	assert.Equal(t, device.StateCalibrating, store.states["dev-1"])
	assert.Len(t, rec.events, 1)

	_, err = svc.ReportState(context.Background(), dev, device.State(3))
	assert.ErrorIs(t, err, device.ErrInvalidState)
}

func TestRun_SerialisesPerDevice(t *testing.T) {
	hold := make(chan struct{})
	disp := &scriptedDispatcher{
		hold: hold,
		answers: map[provider.Operation]*provider.Outcome{
			provider.OpTare: {ReturnValue: provider.IntPtr(1)},
		},
	}
	svc := NewService(disp, &memStore{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Run(context.Background(), newDevice(), provider.OpTare) //nolint:errcheck // asserted via calls
		}()
	}

	// Release the callers one at a time.
	for i := 0; i < 5; i++ {
		select {
		case hold <- struct{}{}:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatcher never reached")
		}
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&disp.maxSeen))
	assert.Len(t, disp.calls, 5)
	assert.Equal(t, 0, svc.locks.size())
}

func TestRun_DifferentDevicesInParallel(t *testing.T) {
	hold := make(chan struct{})
	disp := &scriptedDispatcher{
		hold:    hold,
		answers: map[provider.Operation]*provider.Outcome{provider.OpTare: {ReturnValue: provider.IntPtr(1)}},
	}
	svc := NewService(disp, &memStore{}, nil)

	var wg sync.WaitGroup
	for _, id := range []string{"dev-a", "dev-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = svc.Run(context.Background(), &device.Device{ID: id}, provider.OpTare) //nolint:errcheck // asserted via maxSeen
		}(id)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&disp.inFlight) == 2 }, 2*time.Second, 5*time.Millisecond)
	close(hold)
	wg.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&disp.maxSeen))
}
