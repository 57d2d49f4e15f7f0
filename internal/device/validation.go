package device

import (
	"fmt"
	"math"
	"strings"

	"github.com/nerrad567/keg-monitor-core/internal/units"
)

const (
	maxNameLength   = 100
	maxChipIDLength = 64
)

// ApplyDefaults fills the unit fields a registration may omit and
// normalises the chip type. It never overwrites a value that is set.
func ApplyDefaults(d *Device) {
	d.ChipType = strings.ToLower(strings.TrimSpace(d.ChipType))
	if d.ChipType == "" {
		d.ChipType = ChipTypeParticle
	}
	d.ChipID = strings.TrimSpace(d.ChipID)
	d.Name = strings.TrimSpace(d.Name)
	if d.EmptyKegWeightUnit == "" {
		d.EmptyKegWeightUnit = units.Gram
	}
	if d.StartVolumeUnit == "" {
		d.StartVolumeUnit = units.Millilitre
	}
	if d.DisplayVolumeUnit == "" {
		d.DisplayVolumeUnit = d.StartVolumeUnit
	}
	if d.State == 0 {
		d.State = StateReady
	}
}

// ValidateChipType accepts only the providers the core can talk to.
func ValidateChipType(chipType string) error {
	if strings.ToLower(strings.TrimSpace(chipType)) != ChipTypeParticle {
		return fmt.Errorf("%w: Invalid chip type '%s'.  Supported types are: [%s]",
			ErrUnsupportedChipType, chipType, ChipTypeParticle)
	}
	return nil
}

// ValidateType checks the device type name.
func ValidateType(t Type) error {
	if _, ok := ParseType(string(t)); !ok {
		names := make([]string, len(AllTypes))
		for i, at := range AllTypes {
			names[i] = string(at)
		}
		return fmt.Errorf("%w: Invalid device type '%s'.  Supported types are: [%s]",
			ErrInvalidDeviceType, t, strings.Join(names, ", "))
	}
	return nil
}

// Validate checks a complete device record. Returns the first failure.
func Validate(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if d.Name == "" || len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidDevice, maxNameLength)
	}
	if d.ChipID == "" || len(d.ChipID) > maxChipIDLength {
		return fmt.Errorf("%w: chip_id must be 1-%d characters", ErrInvalidDevice, maxChipIDLength)
	}
	if err := ValidateChipType(d.ChipType); err != nil {
		return err
	}
	if err := ValidateType(d.DeviceType); err != nil {
		return err
	}
	d.DeviceType, _ = ParseType(string(d.DeviceType))

	if !nonNegative(d.EmptyKegWeight) {
		return fmt.Errorf("%w: empty_keg_weight must be a non-negative number", ErrInvalidDevice)
	}
	if !nonNegative(d.StartVolume) {
		return fmt.Errorf("%w: start_volume must be a non-negative number", ErrInvalidDevice)
	}
	if !units.IsMass(d.EmptyKegWeightUnit) {
		return fmt.Errorf("%w: empty_keg_weight_unit %q is not a mass unit", ErrInvalidUnit, d.EmptyKegWeightUnit)
	}
	if !units.IsVolume(d.StartVolumeUnit) {
		return fmt.Errorf("%w: start_volume_unit %q is not a volume unit", ErrInvalidUnit, d.StartVolumeUnit)
	}
	if !units.IsVolume(d.DisplayVolumeUnit) {
		return fmt.Errorf("%w: display_volume_unit %q is not a volume unit", ErrInvalidUnit, d.DisplayVolumeUnit)
	}
	if !d.State.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidState, d.State)
	}
	return nil
}

// ValidateMeasurement checks a reading against the device that produced it:
// weight devices report mass, flow devices report volume.
func ValidateMeasurement(d *Device, m *Measurement) error {
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return fmt.Errorf("%w: value must be a finite number", ErrInvalidMeasurement)
	}
	if m.TakenOn.IsZero() {
		return fmt.Errorf("%w: taken_on is required", ErrInvalidMeasurement)
	}
	switch d.DeviceType {
	case TypeWeight:
		if !units.IsMass(m.Unit) {
			return fmt.Errorf("%w: %q is not a mass unit", ErrInvalidUnit, m.Unit)
		}
	case TypeFlow:
		if !units.IsVolume(m.Unit) {
			return fmt.Errorf("%w: %q is not a volume unit", ErrInvalidUnit, m.Unit)
		}
	}
	return nil
}

// DefaultMeasurementUnit is the unit firmware reports in.
func DefaultMeasurementUnit(t Type) string {
	if t == TypeFlow {
		return units.Millilitre
	}
	return units.Gram
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
