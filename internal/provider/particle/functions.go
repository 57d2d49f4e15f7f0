package particle

import (
	"net/http"

	"github.com/nerrad567/keg-monitor-core/internal/provider"
)

// ProviderName is the chip type served by this package.
const ProviderName = "particle"

// firmwareFunctions maps run operations to firmware function names.
var firmwareFunctions = map[provider.Operation]string{
	provider.OpStartCalibration:     "startCalibration",
	provider.OpCancelCalibration:    "cancelCalibration",
	provider.OpCalibrate:            "calibrate",
	provider.OpTare:                 "tare",
	provider.OpClearMemory:          "clearMemory",
	provider.OpSendMostRecentSample: "sendMostRecentSample",
	provider.OpStartMaintenanceMode: "startMaintenanceMode",
	provider.OpStopMaintenanceMode:  "stopMaintenanceMode",
	provider.OpPullState:            "getState",
}

// FirmwareErrors are the documented negative return codes per function.
// Unlisted codes translate to "Unknown error code: N".
var FirmwareErrors = map[string]provider.ErrorTable{
	"startCalibration": {},
	"cancelCalibration": {
		-1: {Message: "Calibration is in progress and cannot be cancelled", Status: http.StatusFailedDependency},
		-2: {Message: "Initial calibration has not completed.", Status: http.StatusFailedDependency},
	},
	"calibrate": {
		-1: {Message: "Invalid calibration value.  Requires a float", Status: http.StatusBadRequest},
	},
	"tare":        {},
	"clearMemory": {},
	"sendMostRecentSample": {
		-1: {Message: "Failed to push status", Status: http.StatusFailedDependency},
		-2: {Message: "Unable to retrieve extended device information", Status: http.StatusFailedDependency},
		-3: {Message: "No samples", Status: http.StatusFailedDependency},
	},
	"startMaintenanceMode": {},
	"stopMaintenanceMode":  {},
}

// FunctionFor returns the firmware function behind op.
func FunctionFor(op provider.Operation) (string, bool) {
	fn, ok := firmwareFunctions[op]
	return fn, ok
}
