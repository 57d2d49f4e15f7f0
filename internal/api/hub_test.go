package api

import (
	"context"
	"testing"

	"github.com/nerrad567/keg-monitor-core/internal/auth"
	"github.com/nerrad567/keg-monitor-core/internal/events"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/logging"
)

func TestHub_DeviceFilter(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Discard())
	c := testClient(hub, &auth.Principal{Kind: auth.KindUser, ID: "usr-1"}, events.TypeMeasurementCreated)
	c.devices = map[string]struct{}{"dev-2": {}}

	hub.Publish(context.Background(), events.New(events.TypeMeasurementCreated, "dev-1", nil))
	hub.Publish(context.Background(), events.New(events.TypeMeasurementCreated, "dev-2", nil))

	if got := len(c.send); got != 1 {
		t.Fatalf("queued = %d, want only the dev-2 event", got)
	}
}

func TestHub_SlowClientDropsEvents(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Discard())
	c := testClient(hub, nil, events.TypeDeviceDeleted)

	for i := 0; i < wsSendBufferSize+5; i++ {
		hub.Publish(context.Background(), events.New(events.TypeDeviceDeleted, "dev-1", nil))
	}
	if got := len(c.send); got != wsSendBufferSize {
		t.Errorf("queued = %d, want %d", got, wsSendBufferSize)
	}
}

func TestWSClient_EnqueueAfterShutdown(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Discard())
	c := testClient(hub, nil, events.TypeDeviceDeleted)
	hub.Unregister(c)

	if c.enqueue([]byte("late")) {
		t.Error("enqueue succeeded on a closed client")
	}
	// Publishing to an unregistered client must not panic.
	hub.Publish(context.Background(), events.New(events.TypeDeviceDeleted, "dev-1", nil))
}
