// Package mqtt publishes device events to an MQTT broker.
//
// The core is a producer only: state changes, new measurements and device
// deletions are published under a configurable prefix (see Topics) so that
// dashboards and home automation systems can follow the kegs without polling
// the HTTP API. A retained status message with a Last Will shows whether the
// core itself is online.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sink := mqtt.NewEventPublisher(client, client.Topics())
//	svc := command.NewService(registry, devices, sink)
package mqtt
