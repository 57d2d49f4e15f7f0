// Package influxdb writes keg telemetry to InfluxDB v2.
//
// SQLite keeps the authoritative measurement history; InfluxDB receives a
// copy of every reading, with the derived remaining volume, for dashboards
// and long-range queries. Two measurements are written:
//
//	keg_measurement  tags device_id, device_type, unit
//	                 fields value, total_volume_remaining, percent_remaining
//	keg_state        tags device_id; field state
//
// Writes are non-blocking and batched per the batch_size and flush_interval
// settings. EventSink adapts the client to events.Publisher:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	publisher = append(publisher, influxdb.NewEventSink(client))
package influxdb
