package influxdb

import (
	"context"
	"time"

	"github.com/nerrad567/keg-monitor-core/internal/events"
)

// Writer is the part of Client the event sink needs.
type Writer interface {
	WriteReading(r KegReading)
	WriteState(deviceID string, state int, at time.Time)
}

// EventSink records measurement and state events as points. It implements
// events.Publisher; other event types are ignored.
type EventSink struct {
	w Writer
}

// NewEventSink creates a sink writing through w.
func NewEventSink(w Writer) *EventSink {
	return &EventSink{w: w}
}

// Publish converts e into a point.
func (s *EventSink) Publish(_ context.Context, e events.Event) {
	switch p := e.Payload.(type) {
	case events.MeasurementPayload:
		if e.Type != events.TypeMeasurementCreated {
			return
		}
		s.w.WriteReading(KegReading{
			DeviceID:             e.DeviceID,
			DeviceType:           p.DeviceType,
			Unit:                 p.Unit,
			Value:                p.Value,
			TotalVolumeRemaining: p.TotalVolumeRemaining,
			PercentRemaining:     p.PercentRemaining,
			TakenOn:              p.TakenOn,
		})
	case events.StatePayload:
		if e.Type != events.TypeDeviceStateChanged {
			return
		}
		s.w.WriteState(e.DeviceID, p.State, e.Timestamp)
	}
}
