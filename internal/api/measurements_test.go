package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/keg-monitor-core/internal/device"
	"github.com/nerrad567/keg-monitor-core/internal/events"
)

func TestCreateMeasurement(t *testing.T) {
	env := newTestEnv(t)
	dev, token := env.createDevice(t, "meas")

	w := env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/measurements", token,
		`{"value":23220,"taken_on":"2026-03-01T12:00:00+01:00"}`)
	wantStatus(t, w, http.StatusCreated)

	var m device.Measurement
	decode(t, w, &m)
	if m.ID == "" || m.DeviceID != dev.ID {
		t.Errorf("measurement = %+v", m)
	}
	if m.Unit != "g" {
		t.Errorf("unit = %q, want preferred unit g", m.Unit)
	}
	if want := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC); !m.TakenOn.Equal(want) {
		t.Errorf("taken_on = %v, want %v", m.TakenOn, want)
	}

	created := env.events.ofType(events.TypeMeasurementCreated)
	if len(created) != 1 {
		t.Fatalf("measurement events = %d, want 1", len(created))
	}
	payload, ok := created[0].Payload.(events.MeasurementPayload)
	if !ok {
		t.Fatalf("payload type = %T", created[0].Payload)
	}
	if payload.MeasurementID != m.ID || payload.TotalVolumeRemaining != 18820 || payload.PercentRemaining != 99.43 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestCreateMeasurement_Rejections(t *testing.T) {
	env := newTestEnv(t)
	dev, token := env.createDevice(t, "meas-bad")
	path := "/api/v1/devices/" + dev.ID + "/measurements"

	wantErrorMessage(t, env.do(http.MethodPost, path, token, `{}`), http.StatusBadRequest, "value is required")
	wantErrorMessage(t, env.do(http.MethodPost, path, token, `[`), http.StatusBadRequest, "invalid JSON body")
	wantStatus(t, env.do(http.MethodPost, path, token, `{"value":5,"unit":"ml"}`), http.StatusBadRequest)
	wantStatus(t, env.do(http.MethodPost, "/api/v1/devices/dev-missing/measurements", token, `{"value":5}`), http.StatusNotFound)

	if n := len(env.events.ofType(events.TypeMeasurementCreated)); n != 0 {
		t.Errorf("measurement events = %d, want 0", n)
	}
}

func TestListMeasurements(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "meas-list")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := env.measurements.Create(context.Background(), &device.Measurement{
			DeviceID: dev.ID,
			Value:    float64(20000 - i*100),
			Unit:     "g",
			TakenOn:  start.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("creating measurement %d: %v", i, err)
		}
	}
	path := "/api/v1/devices/" + dev.ID + "/measurements"

	w := env.do(http.MethodGet, path, env.userToken, "")
	wantStatus(t, w, http.StatusOK)
	var resp struct {
		Measurements []device.Measurement `json:"measurements"`
		Count        int                  `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 3 {
		t.Fatalf("count = %d, want 3", resp.Count)
	}
	if resp.Measurements[0].Value != 19800 {
		t.Errorf("first value = %v, want newest 19800", resp.Measurements[0].Value)
	}

	w = env.do(http.MethodGet, path+"?limit=2", env.userToken, "")
	wantStatus(t, w, http.StatusOK)
	decode(t, w, &resp)
	if resp.Count != 2 {
		t.Errorf("limited count = %d, want 2", resp.Count)
	}

	for _, limit := range []string{"-1", "many"} {
		t.Run(fmt.Sprintf("limit %s", limit), func(t *testing.T) {
			wantErrorMessage(t, env.do(http.MethodGet, path+"?limit="+limit, env.userToken, ""),
				http.StatusBadRequest, "limit must be a non-negative integer")
		})
	}
}
