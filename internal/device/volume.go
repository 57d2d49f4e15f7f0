package device

import (
	"fmt"
	"math"

	"github.com/nerrad567/keg-monitor-core/internal/units"
)

// DefaultDensity is the density of water in g/ml, used when none is configured.
const DefaultDensity = 1.0

// Projection is the remaining volume derived from the latest measurement.
type Projection struct {
	// TotalVolumeRemaining is expressed in the device's display unit.
	TotalVolumeRemaining float64 `json:"total_volume_remaining"`
	PercentRemaining     float64 `json:"percent_remaining"`
}

// Project derives the remaining volume of a keg.
//
// Weight devices subtract the empty keg weight from the latest reading and
// divide by density. Flow devices subtract the poured volume from the start
// volume. Anything that does not leave a positive remainder projects to zero.
// A unit the conversion tables do not know is returned as an error.
func Project(d *Device, latest *Measurement, density float64) (Projection, error) {
	if d == nil || latest == nil {
		return Projection{}, nil
	}
	if density <= 0 {
		density = DefaultDensity
	}

	startML, err := units.ToML(d.StartVolume, d.StartVolumeUnit)
	if err != nil {
		return Projection{}, fmt.Errorf("start volume: %w", err)
	}

	var remainingML float64
	switch d.DeviceType {
	case TypeWeight:
		emptyG, err := units.ToGrams(d.EmptyKegWeight, d.EmptyKegWeightUnit)
		if err != nil {
			return Projection{}, fmt.Errorf("empty keg weight: %w", err)
		}
		latestG, err := units.ToGrams(latest.Value, latest.Unit)
		if err != nil {
			return Projection{}, fmt.Errorf("latest measurement: %w", err)
		}
		if startML > 0 && emptyG > 0 && latestG > emptyG {
			remainingML = (latestG - emptyG) / density
		}
	case TypeFlow:
		pouredML, err := units.ToML(latest.Value, latest.Unit)
		if err != nil {
			return Projection{}, fmt.Errorf("latest measurement: %w", err)
		}
		remainingML = startML - pouredML
	default:
		return Projection{}, fmt.Errorf("%w: %q", ErrInvalidDeviceType, d.DeviceType)
	}

	if remainingML <= 0 || startML <= 0 {
		return Projection{}, nil
	}

	display, err := units.FromML(remainingML, d.DisplayVolumeUnit)
	if err != nil {
		return Projection{}, fmt.Errorf("display unit: %w", err)
	}
	return Projection{
		TotalVolumeRemaining: round2(display),
		PercentRemaining:     round2(remainingML / startML * 100),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
