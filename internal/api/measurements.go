package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/keg-monitor-core/internal/device"
	"github.com/nerrad567/keg-monitor-core/internal/events"
)

// createMeasurementRequest is the request body for POST /devices/{id}/measurements.
type createMeasurementRequest struct {
	Value   *float64   `json:"value"`
	Unit    string     `json:"unit"`
	TakenOn *time.Time `json:"taken_on"`
}

// handleListMeasurements returns a device's readings, newest first.
// ?limit= caps the result.
func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.loadDevice(w, r, id); !ok {
		return
	}

	limit, ok := queryInt(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}

	list, err := s.measurements.ListByDevice(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("failed to list measurements", "device_id", id, "error", err)
		writeInternalError(w, "failed to list measurements")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"measurements": list,
		"count":        len(list),
	})
}

// handleCreateMeasurement appends a reading.
func (s *Server) handleCreateMeasurement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dev, ok := s.loadDevice(w, r, id)
	if !ok {
		return
	}

	var req createMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	m := &device.Measurement{
		DeviceID: dev.ID,
		Value:    *req.Value,
		Unit:     req.Unit,
		TakenOn:  time.Now().UTC(),
	}
	if req.TakenOn != nil && !req.TakenOn.IsZero() {
		m.TakenOn = req.TakenOn.UTC()
	}
	if m.Unit == "" {
		m.Unit = s.preferredUnit(dev.DeviceType)
	}

	if err := s.recordMeasurement(r.Context(), dev, m); err != nil {
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("failed to create measurement", "device_id", id, "error", err)
		writeInternalError(w, "failed to create measurement")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// preferredUnit is the configured reading unit for a device type.
func (s *Server) preferredUnit(t device.Type) string {
	if unit := s.volumeCfg.PreferredUnits[string(t)]; unit != "" {
		return unit
	}
	return device.DefaultMeasurementUnit(t)
}

// recordMeasurement validates and stores m, then announces it with the
// remaining volume it implies.
func (s *Server) recordMeasurement(ctx context.Context, dev *device.Device, m *device.Measurement) error {
	if err := device.ValidateMeasurement(dev, m); err != nil {
		return err
	}
	if err := s.measurements.Create(ctx, m); err != nil {
		return fmt.Errorf("storing measurement: %w", err)
	}

	projection, err := device.Project(dev, m, s.volumeCfg.DensityGPerML)
	if err != nil {
		s.logger.Warn("cannot project remaining volume", "device_id", dev.ID, "error", err)
	}
	s.publish(ctx, events.New(events.TypeMeasurementCreated, dev.ID, events.MeasurementPayload{
		MeasurementID:        m.ID,
		DeviceType:           string(dev.DeviceType),
		Value:                m.Value,
		Unit:                 m.Unit,
		TakenOn:              m.TakenOn,
		TotalVolumeRemaining: projection.TotalVolumeRemaining,
		PercentRemaining:     projection.PercentRemaining,
	}))
	return nil
}
