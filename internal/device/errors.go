package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID or chip does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when a chip is already registered.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidDeviceType is returned when a device type is not weight or flow.
	ErrInvalidDeviceType = errors.New("device: invalid type")

	// ErrUnsupportedChipType is returned for any provider other than particle.
	ErrUnsupportedChipType = errors.New("device: unsupported chip type")

	// ErrInvalidUnit is returned when a unit does not match the quantity it describes.
	ErrInvalidUnit = errors.New("device: invalid unit")

	// ErrInvalidState is returned for a state code outside the known set.
	ErrInvalidState = errors.New("device: invalid state")

	// ErrInvalidMeasurement is returned when a measurement fails validation.
	ErrInvalidMeasurement = errors.New("device: invalid measurement")
)
