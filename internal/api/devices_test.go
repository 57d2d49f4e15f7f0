package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/keg-monitor-core/internal/auth"
	"github.com/nerrad567/keg-monitor-core/internal/device"
	"github.com/nerrad567/keg-monitor-core/internal/events"
	"github.com/nerrad567/keg-monitor-core/internal/provider"
)

// ─── Create Tests ──────────────────────────────────────────────────

func TestCreateDevice(t *testing.T) {
	env := newTestEnv(t)
	env.cloud.set(provider.OpGetDescription, &provider.Outcome{Data: "  Garage Kegerator  "})

	w := env.do(http.MethodPost, "/api/v1/devices", env.adminToken,
		`{"chip_id":"e00fce68aa","device_type":"weight","empty_keg_weight":4400,"start_volume":18927.059}`)
	wantStatus(t, w, http.StatusCreated)

	var resp map[string]any
	decode(t, w, &resp)
	if resp["name"] != "Garage Kegerator" {
		t.Errorf("name = %v, want provider description", resp["name"])
	}
	if resp["chip_type"] != device.ChipTypeParticle {
		t.Errorf("chip_type = %v, want particle", resp["chip_type"])
	}
	if resp["state_name"] != "ready" {
		t.Errorf("state_name = %v, want ready", resp["state_name"])
	}
	if resp["empty_keg_weight_unit"] != "g" || resp["start_volume_unit"] != "ml" {
		t.Errorf("units = %v/%v, want g/ml", resp["empty_keg_weight_unit"], resp["start_volume_unit"])
	}
	key, _ := resp["api_key"].(string)
	if len(key) != 32 {
		t.Errorf("api_key length = %d, want 32", len(key))
	}
	if resp["token"] != auth.EncodeToken(auth.KindDevice, key) {
		t.Errorf("token = %v, want device token for api_key", resp["token"])
	}
	if _, ok := resp["online"]; ok {
		t.Error("create response should not carry online")
	}

	// The returned token authenticates the device.
	wantStatus(t, env.do(http.MethodGet, "/api/v1/devices", resp["token"].(string), ""), http.StatusOK)

	// Credentials are never returned again.
	w = env.do(http.MethodGet, "/api/v1/devices/"+resp["id"].(string), env.adminToken, "")
	wantStatus(t, w, http.StatusOK)
	if strings.Contains(w.Body.String(), key) {
		t.Error("device GET leaked the api key")
	}
}

func TestCreateDevice_NameFallsBackToChipID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/devices", env.adminToken, `{"chip_id":"abc123","device_type":"flow"}`)
	wantStatus(t, w, http.StatusCreated)

	var resp map[string]any
	decode(t, w, &resp)
	if resp["name"] != "abc123" {
		t.Errorf("name = %v, want chip id", resp["name"])
	}
}

func TestCreateDevice_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.createDevice(t, "taken")

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "invalid json", body: `{`, message: "invalid JSON body"},
		{name: "missing chip", body: `{"device_type":"weight"}`, message: "chip_id is required"},
		{name: "duplicate", body: `{"chip_id":"taken","device_type":"weight"}`, message: "Device already exists"},
		{name: "chip type", body: `{"chip_id":"x","chip_type":"arduino","device_type":"weight"}`, message: "Invalid chip type 'arduino'"},
		{name: "device type", body: `{"chip_id":"x","device_type":"kettle"}`, message: "Invalid device type 'kettle'"},
		{name: "negative volume", body: `{"chip_id":"x","device_type":"weight","start_volume":-1}`, message: "start_volume must be a non-negative number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/devices", env.adminToken, tt.body)
			wantStatus(t, w, http.StatusBadRequest)
			var resp Error
			decode(t, w, &resp)
			if !strings.Contains(resp.Message, tt.message) {
				t.Errorf("message = %q, want it to contain %q", resp.Message, tt.message)
			}
		})
	}
}

// ─── Read Tests ────────────────────────────────────────────────────

func TestListDevices_ProjectsRemainingVolume(t *testing.T) {
	env := newTestEnv(t)
	env.cloud.set(provider.OpOnline, &provider.Outcome{Data: true})

	dev, _ := env.createDevice(t, "proj")
	env.createDevice(t, "idle")
	if err := env.measurements.Create(context.Background(), &device.Measurement{
		DeviceID: dev.ID, Value: 23220, Unit: "g", TakenOn: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("creating measurement: %v", err)
	}

	w := env.do(http.MethodGet, "/api/v1/devices", env.userToken, "")
	wantStatus(t, w, http.StatusOK)

	var resp struct {
		Devices []map[string]any `json:"devices"`
		Count   int              `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 2 || len(resp.Devices) != 2 {
		t.Fatalf("count = %d (%d devices), want 2", resp.Count, len(resp.Devices))
	}

	var found map[string]any
	for _, d := range resp.Devices {
		if d["online"] != true {
			t.Errorf("device %v online = %v, want true", d["id"], d["online"])
		}
		if d["id"] == dev.ID {
			found = d
		}
	}
	if found == nil {
		t.Fatal("projected device missing from list")
	}
	if found["total_volume_remaining"] != 18820.0 {
		t.Errorf("total_volume_remaining = %v, want 18820", found["total_volume_remaining"])
	}
	if found["percent_remaining"] != 99.43 {
		t.Errorf("percent_remaining = %v, want 99.43", found["percent_remaining"])
	}
	if found["measurement_count"] != 1.0 || found["latest_measurement"] != 23220.0 {
		t.Errorf("measurement stats = %v/%v", found["measurement_count"], found["latest_measurement"])
	}
}

func TestGetDevice(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "get-me")

	w := env.do(http.MethodGet, "/api/v1/devices/"+dev.ID, env.userToken, "")
	wantStatus(t, w, http.StatusOK)

	var resp map[string]any
	decode(t, w, &resp)
	if resp["id"] != dev.ID {
		t.Errorf("id = %v, want %s", resp["id"], dev.ID)
	}
	if resp["latest_measurement"] != nil {
		t.Errorf("latest_measurement = %v, want null", resp["latest_measurement"])
	}
	if _, ok := resp["online"]; ok {
		t.Error("online should be omitted when the provider has no answer")
	}

	wantErrorMessage(t, env.do(http.MethodGet, "/api/v1/devices/dev-missing", env.userToken, ""),
		http.StatusNotFound, "device not found")
}

func TestFindDevice(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "find-me")

	w := env.do(http.MethodGet, "/api/v1/devices/find?chip_id=find-me&chip_type=Particle", env.userToken, "")
	wantStatus(t, w, http.StatusOK)

	var resp struct {
		Devices []map[string]any `json:"devices"`
		Count   int              `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 1 || resp.Devices[0]["id"] != dev.ID {
		t.Errorf("find = %+v, want %s", resp, dev.ID)
	}

	wantErrorMessage(t, env.do(http.MethodGet, "/api/v1/devices/find", env.userToken, ""),
		http.StatusBadRequest, "chip_id is required")
	wantErrorMessage(t, env.do(http.MethodGet, "/api/v1/devices/find?chip_id=find-me&chip_type=arduino", env.userToken, ""),
		http.StatusBadRequest, "Invalid chip_type.  Currently only 'Particle' is supported")
	wantErrorMessage(t, env.do(http.MethodGet, "/api/v1/devices/find?chip_id=nope", env.userToken, ""),
		http.StatusNotFound, "device not found")
}

// ─── Update Tests ──────────────────────────────────────────────────

func TestPatchDevice(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "patch-me")

	w := env.do(http.MethodPatch, "/api/v1/devices/"+dev.ID, env.adminToken, `{"name":"Porch","start_volume":19000}`)
	wantStatus(t, w, http.StatusOK)

	var resp map[string]any
	decode(t, w, &resp)
	if resp["name"] != "Porch" || resp["start_volume"] != 19000.0 {
		t.Errorf("patched = %v/%v", resp["name"], resp["start_volume"])
	}
	if resp["chip_id"] != "patch-me" {
		t.Errorf("chip_id = %v, want unchanged", resp["chip_id"])
	}

	stored, err := env.devices.GetByID(context.Background(), dev.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Name != "Porch" {
		t.Errorf("stored name = %q, want Porch", stored.Name)
	}
	if stored.APIKey != dev.APIKey {
		t.Error("patch must not change the api key")
	}
}

func TestPatchDevice_Rejections(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "patch-bad")
	env.createDevice(t, "other-chip")

	for name, body := range map[string]string{
		"device type":    `{"device_type":"kettle"}`,
		"chip type":      `{"chip_type":"arduino"}`,
		"empty name":     `{"name":""}`,
		"volume unit":    `{"start_volume_unit":"g"}`,
		"duplicate chip": `{"chip_id":"other-chip"}`,
	} {
		t.Run(name, func(t *testing.T) {
			wantStatus(t, env.do(http.MethodPatch, "/api/v1/devices/"+dev.ID, env.adminToken, body), http.StatusBadRequest)
		})
	}

	wantStatus(t, env.do(http.MethodPatch, "/api/v1/devices/dev-missing", env.adminToken, `{"name":"x"}`), http.StatusNotFound)
}

// ─── Delete Tests ──────────────────────────────────────────────────

func TestDeleteDevice(t *testing.T) {
	env := newTestEnv(t)
	dev, _ := env.createDevice(t, "delete-me")

	w := env.do(http.MethodDelete, "/api/v1/devices/"+dev.ID, env.adminToken, "")
	wantStatus(t, w, http.StatusNoContent)

	wantStatus(t, env.do(http.MethodGet, "/api/v1/devices/"+dev.ID, env.adminToken, ""), http.StatusNotFound)
	wantStatus(t, env.do(http.MethodDelete, "/api/v1/devices/"+dev.ID, env.adminToken, ""), http.StatusNotFound)

	deleted := env.events.ofType(events.TypeDeviceDeleted)
	if len(deleted) != 1 || deleted[0].DeviceID != dev.ID {
		t.Errorf("deleted events = %+v, want one for %s", deleted, dev.ID)
	}
}
