package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/keg-monitor-core/internal/auth"
	"github.com/nerrad567/keg-monitor-core/internal/command"
	"github.com/nerrad567/keg-monitor-core/internal/device"
	"github.com/nerrad567/keg-monitor-core/internal/provider"
)

// rpcRequest is the optional body of POST /devices/{id}/rpc/{func}. The
// argument may be any JSON scalar.
type rpcRequest struct {
	Arg json.RawMessage `json:"arg"`
}

// rpcResponse is the device as it stands after an accepted command, with
// the firmware's answer alongside.
type rpcResponse struct {
	deviceView
	ReturnValue *int `json:"return_value"`
	Data        any  `json:"data,omitempty"`
	Reconciled  bool `json:"reconciled"`
}

// statusReport is the body firmware posts to /devices/{id}/status.
type statusReport struct {
	State                 *int    `json:"state"`
	LatestMeasurement     float64 `json:"latestMeasurement"`
	LatestMeasurementUnit string  `json:"latestMeasurementUnit"`
	LatestMeasurementTS   int64   `json:"latestMeasurementTS"`
}

// handleDeviceRPC runs a firmware function on a device.
func (s *Server) handleDeviceRPC(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dev, ok := s.loadDevice(w, r, id)
	if !ok {
		return
	}

	op := provider.ParseOperation(chi.URLParam(r, "func"))
	if !command.Allowed(op) {
		writeBadRequest(w, "Unsupported RPC function")
		return
	}

	arg, err := rpcArgument(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	var args []string
	if arg != "" {
		args = append(args, arg)
	}

	result, err := s.commands.Run(r.Context(), dev, op, args...)
	if err != nil {
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("device command failed", "device_id", id, "operation", string(op), "error", err)
		writeInternalError(w, "failed to run command")
		return
	}

	outcome := result.Outcome
	if outcome.Failed() {
		writeError(w, outcome.Status(), ErrCodeDeviceCloud, outcome.ErrorMessage)
		return
	}

	summary, err := s.devices.GetSummary(r.Context(), dev.ID)
	if err != nil {
		s.logger.Error("failed to get device summary", "device_id", id, "error", err)
		writeInternalError(w, "failed to load device")
		return
	}

	resp := rpcResponse{
		deviceView: s.view(r.Context(), summary, true),
		Reconciled: result.Reconciled,
	}
	if outcome != nil {
		resp.ReturnValue = outcome.ReturnValue
		resp.Data = outcome.Data
	}
	writeJSON(w, http.StatusOK, resp)
}

// rpcArgument reads the argument from ?arg= or the JSON body.
func rpcArgument(r *http.Request) (string, error) {
	if arg := r.URL.Query().Get("arg"); arg != "" {
		return arg, nil
	}
	if r.Body == nil {
		return "", nil
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", err
	}
	return scalarArgument(req.Arg)
}

// scalarArgument renders a JSON value as the firmware's string argument.
// Strings are unquoted and other scalars keep their literal text.
func scalarArgument(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var arg string
		if err := json.Unmarshal(raw, &arg); err != nil {
			return "", err
		}
		return arg, nil
	case '{', '[':
		return "", errors.New("arg must be a string or number")
	}
	return string(raw), nil
}

// handleManufacturerInfo returns what the device cloud knows about a device:
// all details, the result of a named read operation, or one detail key.
func (s *Server) handleManufacturerInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dev, ok := s.loadDevice(w, r, id)
	if !ok {
		return
	}

	key := chi.URLParam(r, "key")
	op := provider.OpGetDetails
	if key != "" {
		op = provider.ParseOperation(key)
	}

	if op.IsRead() {
		writeJSON(w, http.StatusOK, outcomeData(s.provider.DispatchDevice(r.Context(), op, dev)))
		return
	}

	details, _ := outcomeData(s.provider.DispatchDevice(r.Context(), provider.OpGetDetails, dev)).(map[string]any)
	if len(details) == 0 {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	value, found := details[key]
	if !found {
		writeBadRequest(w, "Unsupported key function")
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func outcomeData(o *provider.Outcome) any {
	if o == nil {
		return nil
	}
	return o.Data
}

// handleDeviceStatus records a state report from the device itself. A new
// reading carried in the report is stored first.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := auth.FromContext(r.Context())
	if !p.IsDevice(id) && !p.IsAdmin() {
		writeForbidden(w, "only the device or an administrator may report status")
		return
	}

	dev, ok := s.loadDevice(w, r, id)
	if !ok {
		return
	}

	var report statusReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if report.State == nil {
		writeBadRequest(w, "state is required")
		return
	}
	st := device.State(*report.State)
	if !st.Valid() {
		writeBadRequest(w, "invalid state")
		return
	}

	ctx := r.Context()
	if report.LatestMeasurement > 0 && report.LatestMeasurementTS > 0 {
		latest, err := s.measurements.Latest(ctx, dev.ID)
		if err != nil {
			s.logger.Error("failed to load latest measurement", "device_id", id, "error", err)
			writeInternalError(w, "failed to record status")
			return
		}
		if latest == nil || latest.Value != report.LatestMeasurement {
			unit := report.LatestMeasurementUnit
			if unit == "" {
				unit = device.DefaultMeasurementUnit(dev.DeviceType)
			}
			m := &device.Measurement{
				DeviceID: dev.ID,
				Value:    report.LatestMeasurement,
				Unit:     unit,
				TakenOn:  time.Unix(report.LatestMeasurementTS, 0).UTC(),
			}
			if err := s.recordMeasurement(ctx, dev, m); err != nil {
				if isValidationError(err) {
					writeBadRequest(w, err.Error())
					return
				}
				s.logger.Error("failed to record measurement", "device_id", id, "error", err)
				writeInternalError(w, "failed to record status")
				return
			}
		}
	}

	if _, err := s.commands.ReportState(ctx, dev, st); err != nil {
		s.logger.Error("failed to record device state", "device_id", id, "error", err)
		writeInternalError(w, "failed to record status")
		return
	}
	writeJSON(w, http.StatusOK, true)
}
