package device

import (
	"strings"
	"time"
)

// Type is the kind of sensor a keg monitor carries.
type Type string

const (
	// TypeWeight monitors measure the keg's gross weight.
	TypeWeight Type = "weight"
	// TypeFlow monitors count the volume poured.
	TypeFlow Type = "flow"
)

// AllTypes lists the supported device types in display order.
var AllTypes = []Type{TypeWeight, TypeFlow}

// ParseType returns the Type for a case-insensitive name.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeWeight, TypeFlow:
		return t, true
	default:
		return "", false
	}
}

// ChipTypeParticle is the only cloud provider currently supported.
const ChipTypeParticle = "particle"

// State is the firmware state code of a device.
type State int

const (
	StateReady                  State = 1
	StateReadyNoService         State = 2
	StateCalibrationModeEnabled State = 10
	StateCalibrating            State = 11
	StateMaintenanceModeEnabled State = 99
)

var stateNames = map[State]string{
	StateReady:                  "ready",
	StateReadyNoService:         "ready_no_service",
	StateCalibrationModeEnabled: "calibration_mode_enabled",
	StateCalibrating:            "calibrating",
	StateMaintenanceModeEnabled: "maintenance_mode_enabled",
}

// Valid reports whether s is a known state code.
func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

// String returns the state's name, or "unknown".
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Device is a registered keg monitor.
type Device struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ChipType   string `json:"chip_type"`
	ChipID     string `json:"chip_id"`
	ChipModel  string `json:"chip_model,omitempty"`
	DeviceType Type   `json:"device_type"`

	EmptyKegWeight     float64 `json:"empty_keg_weight"`
	EmptyKegWeightUnit string  `json:"empty_keg_weight_unit"`
	StartVolume        float64 `json:"start_volume"`
	StartVolumeUnit    string  `json:"start_volume_unit"`
	DisplayVolumeUnit  string  `json:"display_volume_unit"`

	State State `json:"state"`

	// APIKey authenticates the device itself. Never serialised.
	APIKey string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Measurement is one reading. Rows are never updated.
type Measurement struct {
	ID       string    `json:"id"`
	DeviceID string    `json:"device_id"`
	Value    float64   `json:"value"`
	Unit     string    `json:"unit"`
	TakenOn  time.Time `json:"taken_on"`
}

// Summary is a device together with its measurement statistics.
type Summary struct {
	Device           *Device
	MeasurementCount int
	Latest           *Measurement
}

// Patch carries the mutable device fields. Nil means "leave unchanged".
type Patch struct {
	Name               *string  `json:"name"`
	ChipType           *string  `json:"chip_type"`
	ChipID             *string  `json:"chip_id"`
	ChipModel          *string  `json:"chip_model"`
	DeviceType         *string  `json:"device_type"`
	EmptyKegWeight     *float64 `json:"empty_keg_weight"`
	EmptyKegWeightUnit *string  `json:"empty_keg_weight_unit"`
	StartVolume        *float64 `json:"start_volume"`
	StartVolumeUnit    *string  `json:"start_volume_unit"`
	DisplayVolumeUnit  *string  `json:"display_volume_unit"`
}

// Apply copies the set fields of p onto d. The result still needs Validate.
func (p Patch) Apply(d *Device) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.ChipType != nil {
		d.ChipType = *p.ChipType
	}
	if p.ChipID != nil {
		d.ChipID = *p.ChipID
	}
	if p.ChipModel != nil {
		d.ChipModel = *p.ChipModel
	}
	if p.DeviceType != nil {
		d.DeviceType = Type(*p.DeviceType)
	}
	if p.EmptyKegWeight != nil {
		d.EmptyKegWeight = *p.EmptyKegWeight
	}
	if p.EmptyKegWeightUnit != nil {
		d.EmptyKegWeightUnit = *p.EmptyKegWeightUnit
	}
	if p.StartVolume != nil {
		d.StartVolume = *p.StartVolume
	}
	if p.StartVolumeUnit != nil {
		d.StartVolumeUnit = *p.StartVolumeUnit
	}
	if p.DisplayVolumeUnit != nil {
		d.DisplayVolumeUnit = *p.DisplayVolumeUnit
	}
}
