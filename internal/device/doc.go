// Package device holds the keg monitor catalogue: registered devices, their
// append-only measurement history and the remaining-volume projection.
//
// # Key Types
//
//   - Device: a registered keg monitor (weight or flow sensor) bound to one
//     cloud provider chip
//   - State: the firmware state code reported by the device or set by an RPC
//   - Measurement: one raw reading (grams for weight, millilitres for flow
//     unless another unit is given)
//   - Projection: remaining volume and percent remaining derived from the
//     latest measurement
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	dev, err := repo.GetByID(ctx, "dev-1a2b3c4d")
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // 404
//	}
//
//	summary, _ := repo.GetSummary(ctx, dev.ID)
//	proj, err := device.Project(summary.Device, summary.Latest, 1.0)
//
// # Thread Safety
//
// SQLiteRepository and MeasurementRepository are safe for concurrent use;
// all state lives in the database.
package device
