// Package units converts volumes and masses between named units.
//
// Volumes are canonicalised to millilitres and masses to grams. Unit names
// are case-insensitive; an unknown name is always an error, never a
// pass-through.
package units

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedUnit is returned for any unit name not in the tables below.
var ErrUnsupportedUnit = errors.New("units: unsupported unit")

// Canonical units.
const (
	Millilitre = "ml"
	Gram       = "g"
)

// volumePerML is how many of the named unit make up one millilitre.
var volumePerML = map[string]float64{
	"ml":             1,
	"l":              0.001,
	"gal":            0.0002641721,
	"gal (imperial)": 0.000219969,
	"pt":             0.0021133764,
	"pt (imperial)":  0.00175975,
	"qt":             0.0010566882,
	"qt (imperial)":  0.000879877,
	"cup":            0.0042267528,
	"cup (imperial)": 0.00351951,
	"oz":             0.033814,
	"oz (imperial)":  0.0351951,
}

// gramsPer is the weight of one of the named unit in grams.
var gramsPer = map[string]float64{
	"g":  1,
	"kg": 1000,
	"oz": 28.349523125,
	"lb": 453.59237,
}

// normalise lower-cases and trims a unit name and accepts "gal(imperial)"
// for "gal (imperial)".
func normalise(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if i := strings.Index(u, "(imperial)"); i > 0 && u[i-1] != ' ' {
		u = u[:i] + " " + u[i:]
	}
	return u
}

// ToML converts a volume in unit to millilitres.
func ToML(value float64, unit string) (float64, error) {
	f, ok := volumePerML[normalise(unit)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedUnit, unit)
	}
	return value / f, nil
}

// FromML converts millilitres to unit.
func FromML(ml float64, unit string) (float64, error) {
	f, ok := volumePerML[normalise(unit)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedUnit, unit)
	}
	return ml * f, nil
}

// ToGrams converts a mass in unit to grams.
func ToGrams(value float64, unit string) (float64, error) {
	f, ok := gramsPer[normalise(unit)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedUnit, unit)
	}
	return value * f, nil
}

// FromGrams converts grams to unit.
func FromGrams(g float64, unit string) (float64, error) {
	f, ok := gramsPer[normalise(unit)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedUnit, unit)
	}
	return g / f, nil
}

// IsVolume reports whether unit is a known volume unit.
func IsVolume(unit string) bool {
	_, ok := volumePerML[normalise(unit)]
	return ok
}

// IsMass reports whether unit is a known mass unit.
func IsMass(unit string) bool {
	_, ok := gramsPer[normalise(unit)]
	return ok
}

// Canonical returns the normalised spelling of unit.
func Canonical(unit string) string {
	return normalise(unit)
}
