package provider

import (
	"net/http"
	"strings"
)

// AmbiguousReturn is the firmware's "accepted, state unknown" return value.
const AmbiguousReturn = -99

// Operation is a logical device operation name.
type Operation string

// Read operations return data and never change device state.
const (
	OpGetDetails          Operation = "get_details"
	OpGetDescription      Operation = "get_description"
	OpSupportsStatusCheck Operation = "supports_status_check"
	OpOnline              Operation = "online"
)

// Run operations invoke a firmware function.
const (
	OpPing                 Operation = "ping"
	OpStartCalibration     Operation = "start_calibration"
	OpCancelCalibration    Operation = "cancel_calibration"
	OpCalibrate            Operation = "calibrate"
	OpTare                 Operation = "tare"
	OpClearMemory          Operation = "clear_memory"
	OpSendMostRecentSample Operation = "send_most_recent_sample"
	OpStartMaintenanceMode Operation = "start_maintenance_mode"
	OpStopMaintenanceMode  Operation = "stop_maintenance_mode"
	OpPullState            Operation = "pull_state"
)

var readOps = map[Operation]struct{}{
	OpGetDetails:          {},
	OpGetDescription:      {},
	OpSupportsStatusCheck: {},
	OpOnline:              {},
}

// ParseOperation lower-cases and trims a name from a URL.
func ParseOperation(s string) Operation {
	return Operation(strings.ToLower(strings.TrimSpace(s)))
}

// IsRead reports whether op belongs to the read family.
func (op Operation) IsRead() bool {
	_, ok := readOps[op]
	return ok
}

// Outcome is the result of a dispatched operation.
type Outcome struct {
	// ReturnValue is the firmware return code for run operations.
	ReturnValue *int `json:"return_value"`

	// ErrorMessage is set when the provider reported a failure.
	ErrorMessage string `json:"error,omitempty"`

	// HTTPStatus is the status the API should answer with.
	HTTPStatus int `json:"-"`

	// Data is the payload of read operations.
	Data any `json:"data,omitempty"`
}

// Ambiguous reports whether the firmware answered -99.
func (o *Outcome) Ambiguous() bool {
	return o != nil && o.ReturnValue != nil && *o.ReturnValue == AmbiguousReturn
}

// Failed reports whether the outcome carries an error.
func (o *Outcome) Failed() bool {
	return o != nil && o.ErrorMessage != ""
}

// Status returns HTTPStatus, defaulting to 200.
func (o *Outcome) Status() int {
	if o == nil || o.HTTPStatus == 0 {
		return http.StatusOK
	}
	return o.HTTPStatus
}

// Value returns the return value, or 0 when there is none.
func (o *Outcome) Value() int {
	if o == nil || o.ReturnValue == nil {
		return 0
	}
	return *o.ReturnValue
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
