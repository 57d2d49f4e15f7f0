package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/keg-monitor-core/internal/auth"
	"github.com/nerrad567/keg-monitor-core/internal/device"
	"github.com/nerrad567/keg-monitor-core/internal/events"
	"github.com/nerrad567/keg-monitor-core/internal/provider"
)

// ─── RPC Tests ─────────────────────────────────────────────────────

func TestDeviceRPC_Unsupported(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "rpc-unsupported")

	for _, fn := range []string{"reboot", "pull_state", "get_details"} {
		t.Run(fn, func(t *testing.T) {
			wantErrorMessage(t, env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/"+fn, env.userToken, ""),
				http.StatusBadRequest, "Unsupported RPC function")
		})
	}

	wantStatus(t, env.do(http.MethodPost, "/api/v1/devices/dev-missing/rpc/tare", env.userToken, ""), http.StatusNotFound)
}

func TestDeviceRPC_Tare(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "rpc-tare")
	addReading(t, env, dev, 23220)
	env.cloud.set(provider.OpTare, &provider.Outcome{ReturnValue: provider.IntPtr(0)})

	w := env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/TARE", env.userToken, "")
	wantStatus(t, w, http.StatusOK)

	var resp map[string]any
	decode(t, w, &resp)
	wantDeviceView(t, resp, dev.ID)
	if resp["return_value"] != 0.0 {
		t.Errorf("return_value = %v, want 0", resp["return_value"])
	}
	if resp["state"] != 1.0 || resp["state_name"] != "ready" || resp["reconciled"] != false {
		t.Errorf("state = %v/%v reconciled %v", resp["state"], resp["state_name"], resp["reconciled"])
	}
	if env.cloud.called(provider.OpPullState) {
		t.Error("a definite answer should not pull state")
	}
}

func TestDeviceRPC_NoAnswer(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "rpc-silent")

	w := env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/ping", env.userToken, "")
	wantStatus(t, w, http.StatusOK)

	var resp map[string]any
	decode(t, w, &resp)
	if v, ok := resp["return_value"]; !ok || v != nil {
		t.Errorf("return_value = %v (present %v), want null", v, ok)
	}
}

func TestDeviceRPC_Calibrate(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "rpc-calibrate")

	w := env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/calibrate", env.userToken, "")
	wantStatus(t, w, http.StatusBadRequest)
	if env.cloud.called(provider.OpCalibrate) {
		t.Error("calibrate without an argument must not reach the provider")
	}

	wantStatus(t, env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/calibrate", env.userToken, `{"arg":`),
		http.StatusBadRequest)

	env.cloud.set(provider.OpCalibrate, &provider.Outcome{
		ReturnValue:  provider.IntPtr(-1),
		ErrorMessage: "Invalid calibration weight",
		HTTPStatus:   http.StatusBadRequest,
	})
	w = env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/calibrate?arg=abc", env.userToken, "")
	wantStatus(t, w, http.StatusBadRequest)
	var failed Error
	decode(t, w, &failed)
	if failed.Code != ErrCodeDeviceCloud || failed.Message != "Invalid calibration weight" {
		t.Errorf("failure = %+v", failed)
	}

	env.cloud.set(provider.OpCalibrate, &provider.Outcome{ReturnValue: provider.IntPtr(0)})
	w = env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/calibrate", env.userToken, `{"arg":"1000"}`)
	wantStatus(t, w, http.StatusOK)
	if got := env.cloud.argsOf(provider.OpCalibrate); len(got) != 1 || got[0] != "1000" {
		t.Errorf("args = %v, want [1000]", got)
	}
}

func TestDeviceRPC_NumericArgument(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "rpc-numeric")
	env.cloud.set(provider.OpCalibrate, &provider.Outcome{ReturnValue: provider.IntPtr(0)})

	for _, tt := range []struct {
		body string
		want string
	}{
		{`{"arg":500}`, "500"},
		{`{"arg":12.5}`, "12.5"},
		{`{"arg":"  750 "}`, "  750 "},
	} {
		t.Run(tt.body, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/calibrate", env.userToken, tt.body)
			wantStatus(t, w, http.StatusOK)
			if got := env.cloud.argsOf(provider.OpCalibrate); len(got) != 1 || got[0] != tt.want {
				t.Errorf("args = %q, want [%q]", got, tt.want)
			}
		})
	}

	wantStatus(t, env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/calibrate", env.userToken, `{"arg":{"grams":500}}`),
		http.StatusBadRequest)
	wantStatus(t, env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/calibrate", env.userToken, `{"arg":null}`),
		http.StatusBadRequest)
}

func TestDeviceRPC_CancelCalibration(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "rpc-cancel")

	env.cloud.set(provider.OpCancelCalibration, &provider.Outcome{
		ReturnValue:  provider.IntPtr(-1),
		ErrorMessage: "Calibration is in progress and cannot be cancelled",
		HTTPStatus:   http.StatusFailedDependency,
	})
	wantErrorMessage(t, env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/cancel_calibration", env.userToken, ""),
		http.StatusFailedDependency, "Calibration is in progress and cannot be cancelled")

	env.cloud.set(provider.OpCancelCalibration, &provider.Outcome{ReturnValue: provider.IntPtr(0)})
	w := env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/cancel_calibration", env.userToken, "")
	wantStatus(t, w, http.StatusOK)
	var resp map[string]any
	decode(t, w, &resp)
	if resp["id"] != dev.ID || resp["return_value"] != 0.0 {
		t.Errorf("response = %v", resp)
	}
}

func TestDeviceRPC_AmbiguousReconciles(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "rpc-ambiguous")
	addReading(t, env, dev, 23220)
	env.cloud.set(provider.OpStartMaintenanceMode, &provider.Outcome{ReturnValue: provider.IntPtr(provider.AmbiguousReturn)})
	env.cloud.set(provider.OpPullState, &provider.Outcome{ReturnValue: provider.IntPtr(int(device.StateMaintenanceModeEnabled))})

	w := env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/rpc/start_maintenance_mode", env.userToken, "")
	wantStatus(t, w, http.StatusOK)

	var resp map[string]any
	decode(t, w, &resp)
	wantDeviceView(t, resp, dev.ID)
	if resp["state"] != 99.0 || resp["state_name"] != "maintenance_mode_enabled" {
		t.Errorf("state = %v/%v, want 99", resp["state"], resp["state_name"])
	}
	if resp["reconciled"] != true {
		t.Error("reconciled = false, want true")
	}

	stored, err := env.devices.GetByID(context.Background(), dev.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.State != device.StateMaintenanceModeEnabled {
		t.Errorf("stored state = %d, want 99", stored.State)
	}

	changed := env.events.ofType(events.TypeDeviceStateChanged)
	if len(changed) != 1 {
		t.Fatalf("state events = %d, want 1", len(changed))
	}
	payload, ok := changed[0].Payload.(events.StatePayload)
	if !ok || payload.State != 99 || payload.Previous != 1 {
		t.Errorf("payload = %+v", changed[0].Payload)
	}
}

// addReading stores a weight reading for dev.
func addReading(t *testing.T, env *testEnv, dev *device.Device, grams float64) {
	t.Helper()
	if err := env.measurements.Create(context.Background(), &device.Measurement{
		DeviceID: dev.ID, Value: grams, Unit: "g", TakenOn: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("creating measurement: %v", err)
	}
}

// wantDeviceView checks resp carries the device and its projection for a
// 23220 g reading.
func wantDeviceView(t *testing.T, resp map[string]any, id string) {
	t.Helper()
	if resp["id"] != id {
		t.Errorf("id = %v, want %s", resp["id"], id)
	}
	if resp["total_volume_remaining"] != 18820.0 {
		t.Errorf("total_volume_remaining = %v, want 18820", resp["total_volume_remaining"])
	}
	if resp["percent_remaining"] != 99.43 {
		t.Errorf("percent_remaining = %v, want 99.43", resp["percent_remaining"])
	}
	if resp["measurement_count"] != 1.0 {
		t.Errorf("measurement_count = %v, want 1", resp["measurement_count"])
	}
}

// ─── Manufacturer Info Tests ───────────────────────────────────────

func TestManufacturerInfo(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "info")
	base := "/api/v1/devices/" + dev.ID + "/manufacturer_info"

	// No details from the cloud.
	w := env.do(http.MethodGet, base, env.userToken, "")
	wantStatus(t, w, http.StatusOK)
	if got := w.Body.String(); got != "null\n" {
		t.Errorf("body = %q, want null", got)
	}
	w = env.do(http.MethodGet, base+"/serial_number", env.userToken, "")
	wantStatus(t, w, http.StatusOK)
	if got := w.Body.String(); got != "null\n" {
		t.Errorf("body = %q, want null", got)
	}

	env.cloud.set(provider.OpGetDetails, &provider.Outcome{Data: map[string]any{
		"serial_number": "P0123",
		"cellular":      true,
	}})
	env.cloud.set(provider.OpOnline, &provider.Outcome{Data: false})

	w = env.do(http.MethodGet, base, env.userToken, "")
	wantStatus(t, w, http.StatusOK)
	var details map[string]any
	decode(t, w, &details)
	if details["serial_number"] != "P0123" || details["cellular"] != true {
		t.Errorf("details = %v", details)
	}

	w = env.do(http.MethodGet, base+"/serial_number", env.userToken, "")
	wantStatus(t, w, http.StatusOK)
	var serial string
	decode(t, w, &serial)
	if serial != "P0123" {
		t.Errorf("serial_number = %q, want P0123", serial)
	}

	w = env.do(http.MethodGet, base+"/online", env.userToken, "")
	wantStatus(t, w, http.StatusOK)
	if got := w.Body.String(); got != "false\n" {
		t.Errorf("online body = %q, want false", got)
	}

	wantErrorMessage(t, env.do(http.MethodGet, base+"/firmware_flavour", env.userToken, ""),
		http.StatusBadRequest, "Unsupported key function")
}

// ─── Status Report Tests ───────────────────────────────────────────

func TestDeviceStatus_FromDevice(t *testing.T) {
	env := newTestEnv(t)
	dev, token := env.createDevice(t, "status")
	path := "/api/v1/devices/" + dev.ID + "/status"
	body := `{"state":10,"latestMeasurement":23220,"latestMeasurementTS":1700000000}`

	w := env.do(http.MethodPost, path, token, body)
	wantStatus(t, w, http.StatusOK)
	if got := w.Body.String(); got != "true\n" {
		t.Errorf("body = %q, want true", got)
	}

	stored, err := env.devices.GetByID(context.Background(), dev.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.State != device.StateCalibrationModeEnabled {
		t.Errorf("stored state = %d, want 10", stored.State)
	}

	latest, err := env.measurements.Latest(context.Background(), dev.ID)
	if err != nil || latest == nil {
		t.Fatalf("Latest = %v, %v", latest, err)
	}
	if latest.Value != 23220 || latest.Unit != "g" || latest.TakenOn.Unix() != 1700000000 {
		t.Errorf("latest = %+v", latest)
	}

	// The same reading again is not stored twice.
	wantStatus(t, env.do(http.MethodPost, path, token, body), http.StatusOK)
	list, err := env.measurements.ListByDevice(context.Background(), dev.ID, 0)
	if err != nil {
		t.Fatalf("ListByDevice: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("measurements = %d, want 1", len(list))
	}

	if n := len(env.events.ofType(events.TypeMeasurementCreated)); n != 1 {
		t.Errorf("measurement events = %d, want 1", n)
	}
	if n := len(env.events.ofType(events.TypeDeviceStateChanged)); n != 2 {
		t.Errorf("state events = %d, want 2", n)
	}
}

func TestDeviceStatus_StateOnly(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "status-admin")

	w := env.do(http.MethodPost, "/api/v1/devices/"+dev.ID+"/status", env.adminToken, `{"state":2}`)
	wantStatus(t, w, http.StatusOK)

	latest, err := env.measurements.Latest(context.Background(), dev.ID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest != nil {
		t.Errorf("latest = %+v, want none", latest)
	}
}

func TestDeviceStatus_Access(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "status-guarded")
	_, otherToken := env.createDevice(t, "status-other")

	sa := &auth.ServiceAccount{Name: "brewery-dashboard"}
	if err := env.services.Create(context.Background(), sa); err != nil {
		t.Fatalf("creating service account: %v", err)
	}
	saToken := auth.EncodeToken(auth.KindServiceAccount, sa.APIKey)

	path := "/api/v1/devices/" + dev.ID + "/status"
	for name, token := range map[string]string{
		"other device":    otherToken,
		"service account": saToken,
		"non-admin user":  env.userToken,
	} {
		t.Run(name, func(t *testing.T) {
			wantStatus(t, env.do(http.MethodPost, path, token, `{"state":1}`), http.StatusForbidden)
		})
	}
}

func TestDeviceStatus_Validation(t *testing.T) {
	env := newTestEnv(t)
	dev, token := env.createDevice(t, "status-invalid")
	path := "/api/v1/devices/" + dev.ID + "/status"

	wantErrorMessage(t, env.do(http.MethodPost, path, token, `{}`), http.StatusBadRequest, "state is required")
	wantErrorMessage(t, env.do(http.MethodPost, path, token, `{"state":5}`), http.StatusBadRequest, "invalid state")
	wantErrorMessage(t, env.do(http.MethodPost, path, token, `nope`), http.StatusBadRequest, "invalid JSON body")
	wantStatus(t, env.do(http.MethodPost, path, token,
		`{"state":1,"latestMeasurement":3,"latestMeasurementUnit":"ml","latestMeasurementTS":1700000000}`),
		http.StatusBadRequest)
}
