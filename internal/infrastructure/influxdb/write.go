package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names in the bucket.
const (
	measurementKeg   = "keg_measurement"
	measurementState = "keg_state"
)

// KegReading is one stored measurement with its derived projection.
type KegReading struct {
	DeviceID             string
	DeviceType           string
	Unit                 string
	Value                float64
	TotalVolumeRemaining float64
	PercentRemaining     float64
	TakenOn              time.Time
}

// WriteReading queues a keg_measurement point. Dropped when disconnected.
func (c *Client) WriteReading(r KegReading) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(readingPoint(r))
}

// WriteState queues a keg_state point recording a firmware state change.
func (c *Client) WriteState(deviceID string, state int, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statePoint(deviceID, state, at))
}

func readingPoint(r KegReading) *write.Point {
	takenOn := r.TakenOn
	if takenOn.IsZero() {
		takenOn = time.Now()
	}
	return write.NewPoint(
		measurementKeg,
		map[string]string{
			"device_id":   r.DeviceID,
			"device_type": r.DeviceType,
			"unit":        r.Unit,
		},
		map[string]interface{}{
			"value":                  r.Value,
			"total_volume_remaining": r.TotalVolumeRemaining,
			"percent_remaining":      r.PercentRemaining,
		},
		takenOn,
	)
}

func statePoint(deviceID string, state int, at time.Time) *write.Point {
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		measurementState,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{"state": int64(state)},
		at,
	)
}
