package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	d := &Device{ChipID: " abc ", DeviceType: TypeFlow, StartVolumeUnit: "l"}
	ApplyDefaults(d)

	assert.Equal(t, "abc", d.ChipID)
	assert.Equal(t, ChipTypeParticle, d.ChipType)
	assert.Equal(t, "g", d.EmptyKegWeightUnit)
	assert.Equal(t, "l", d.DisplayVolumeUnit)
	assert.Equal(t, StateReady, d.State)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Device)
		wantErr error
	}{
		{"valid", func(d *Device) {}, nil},
		{"missing name", func(d *Device) { d.Name = "" }, ErrInvalidDevice},
		{"missing chip id", func(d *Device) { d.ChipID = "" }, ErrInvalidDevice},
		{"unsupported chip type", func(d *Device) { d.ChipType = "arduino" }, ErrUnsupportedChipType},
		{"bad device type", func(d *Device) { d.DeviceType = "pressure" }, ErrInvalidDeviceType},
		{"negative start volume", func(d *Device) { d.StartVolume = -1 }, ErrInvalidDevice},
		{"volume unit for weight", func(d *Device) { d.EmptyKegWeightUnit = "ml" }, ErrInvalidUnit},
		{"mass unit for volume", func(d *Device) { d.StartVolumeUnit = "kg" }, ErrInvalidUnit},
		{"unknown display unit", func(d *Device) { d.DisplayVolumeUnit = "barrel" }, ErrInvalidUnit},
		{"unknown state", func(d *Device) { d.State = 7 }, ErrInvalidState},
		{"case-insensitive type", func(d *Device) { d.DeviceType = "FLOW" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := weightDevice("chip")
			tt.mutate(d)
			err := Validate(d)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateType_Message(t *testing.T) {
	err := ValidateType("pressure")
	assert.ErrorContains(t, err, "Invalid device type 'pressure'.  Supported types are: [weight, flow]")
}

func TestValidateMeasurement(t *testing.T) {
	now := time.Now()
	weight := weightDevice("w")
	flow := &Device{DeviceType: TypeFlow}

	assert.NoError(t, ValidateMeasurement(weight, &Measurement{Value: 1, Unit: "kg", TakenOn: now}))
	assert.ErrorIs(t, ValidateMeasurement(weight, &Measurement{Value: 1, Unit: "ml", TakenOn: now}), ErrInvalidUnit)
	assert.NoError(t, ValidateMeasurement(flow, &Measurement{Value: 1, Unit: "pt (imperial)", TakenOn: now}))
	assert.ErrorIs(t, ValidateMeasurement(flow, &Measurement{Value: 1, Unit: "lb", TakenOn: now}), ErrInvalidUnit)
	assert.ErrorIs(t, ValidateMeasurement(flow, &Measurement{Value: 1, Unit: "ml"}), ErrInvalidMeasurement)
}

func TestPatchApply(t *testing.T) {
	d := weightDevice("chip")
	name := "New name"
	vol := 5.0
	Patch{Name: &name, StartVolume: &vol}.Apply(d)

	assert.Equal(t, "New name", d.Name)
	assert.InDelta(t, 5.0, d.StartVolume, 1e-9)
	assert.Equal(t, "chip", d.ChipID)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "maintenance_mode_enabled", StateMaintenanceModeEnabled.String())
	assert.Equal(t, "unknown", State(5).String())
	assert.False(t, State(0).Valid())
}
