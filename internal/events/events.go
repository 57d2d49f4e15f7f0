// Package events defines the device events fanned out to realtime
// subscribers, the MQTT broker and the telemetry store.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeDeviceStateChanged = "device.state_changed"
	TypeMeasurementCreated = "measurement.created"
	TypeDeviceDeleted      = "device.deleted"
)

// Event is a change to one device.
type Event struct {
	Type      string    `json:"type"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New stamps an event with the current UTC time.
func New(eventType, deviceID string, payload any) Event {
	return Event{
		Type:      eventType,
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Publisher delivers events. Publish must not block the caller for long and
// never fails the request that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event)

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, e Event) {
	f(ctx, e)
}

// Fanout publishes to every non-nil publisher in order.
type Fanout []Publisher

// Publish delivers e to each publisher.
func (f Fanout) Publish(ctx context.Context, e Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, e)
		}
	}
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) {})

// StatePayload is the payload of a device.state_changed event.
type StatePayload struct {
	State     int    `json:"state"`
	StateName string `json:"state_name"`
	Previous  int    `json:"previous_state"`
}

// MeasurementPayload is the payload of a measurement.created event. The
// projection fields are zero when the device has no usable start volume.
type MeasurementPayload struct {
	MeasurementID        string    `json:"measurement_id"`
	DeviceType           string    `json:"device_type"`
	Value                float64   `json:"value"`
	Unit                 string    `json:"unit"`
	TakenOn              time.Time `json:"taken_on"`
	TotalVolumeRemaining float64   `json:"total_volume_remaining"`
	PercentRemaining     float64   `json:"percent_remaining"`
}
