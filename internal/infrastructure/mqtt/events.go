package mqtt

import (
	"context"
	"errors"

	"github.com/nerrad567/keg-monitor-core/internal/events"
)

// JSONPublisher is the part of Client the event sink needs.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// EventPublisher forwards device events to the broker. It implements
// events.Publisher.
type EventPublisher struct {
	client JSONPublisher
	topics Topics
	logger Logger
}

// NewEventPublisher creates a sink publishing through client under topics.
func NewEventPublisher(client JSONPublisher, topics Topics) *EventPublisher {
	return &EventPublisher{client: client, topics: topics, logger: noopLogger{}}
}

// SetLogger sets the logger for publish failures.
func (p *EventPublisher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	p.logger = logger
}

// Publish sends e to the topic for its type. Unknown event types are ignored.
// Failures are logged and never returned to the request that raised the event.
func (p *EventPublisher) Publish(_ context.Context, e events.Event) {
	if e.DeviceID == "" {
		return
	}

	var (
		topic    string
		retained bool
	)
	switch e.Type {
	case events.TypeDeviceStateChanged:
		topic, retained = p.topics.DeviceState(e.DeviceID), true
	case events.TypeMeasurementCreated:
		topic = p.topics.DeviceMeasurement(e.DeviceID)
	case events.TypeDeviceDeleted:
		topic = p.topics.DeviceDeleted(e.DeviceID)
	default:
		return
	}

	if err := p.client.PublishJSON(topic, e, retained); err != nil {
		if errors.Is(err, ErrNotConnected) {
			p.logger.Warn("mqtt not connected, event dropped", "type", e.Type, "device_id", e.DeviceID)
			return
		}
		p.logger.Error("mqtt event publish failed", "type", e.Type, "topic", topic, "error", err)
	}
}
