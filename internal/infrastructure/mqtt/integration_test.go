//go:build integration

package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/keg-monitor-core/internal/events"
)

// Integration tests need a broker at 127.0.0.1:1883:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func subscribe(t *testing.T, topic string) <-chan pahomqtt.Message {
	t.Helper()
	opts := pahomqtt.NewClientOptions().AddBroker("tcp://127.0.0.1:1883").SetClientID("kegmon-test-sub")
	sub := pahomqtt.NewClient(opts)
	if tok := sub.Connect(); !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Fatalf("subscriber connect: %v", tok.Error())
	}
	t.Cleanup(func() { sub.Disconnect(100) })

	ch := make(chan pahomqtt.Message, 8)
	if tok := sub.Subscribe(topic, 1, func(_ pahomqtt.Client, m pahomqtt.Message) { ch <- m }); !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}
	return ch
}

func TestIntegrationConnectAndClose(t *testing.T) {
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestIntegrationEventPublisher(t *testing.T) {
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	msgs := subscribe(t, client.Topics().DeviceMeasurement("dev-it"))
	sink := NewEventPublisher(client, client.Topics())
	sink.Publish(context.Background(), events.New(events.TypeMeasurementCreated, "dev-it", map[string]float64{"value": 23220}))

	select {
	case m := <-msgs:
		var e events.Event
		if err := json.Unmarshal(m.Payload(), &e); err != nil {
			t.Fatalf("payload not JSON: %v", err)
		}
		if e.Type != events.TypeMeasurementCreated || e.DeviceID != "dev-it" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}
