package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/keg-monitor-core/internal/auth"
	"github.com/nerrad567/keg-monitor-core/internal/device"
	"github.com/nerrad567/keg-monitor-core/internal/events"
	"github.com/nerrad567/keg-monitor-core/internal/provider"
)

// onlineLookupLimit bounds concurrent cloud lookups when listing devices.
const onlineLookupLimit = 8

// deviceView is a device as the API returns it.
type deviceView struct {
	*device.Device
	StateName string `json:"state_name"`

	MeasurementCount         int        `json:"measurement_count"`
	LatestMeasurement        *float64   `json:"latest_measurement"`
	LatestMeasurementUnit    string     `json:"latest_measurement_unit,omitempty"`
	LatestMeasurementTakenOn *time.Time `json:"latest_measurement_taken_on,omitempty"`

	device.Projection

	// Online is omitted when the provider cannot tell.
	Online *bool `json:"online,omitempty"`
}

// createDeviceRequest is the request body for POST /devices.
type createDeviceRequest struct {
	Name               string  `json:"name"`
	ChipType           string  `json:"chip_type"`
	ChipID             string  `json:"chip_id"`
	ChipModel          string  `json:"chip_model"`
	DeviceType         string  `json:"device_type"`
	EmptyKegWeight     float64 `json:"empty_keg_weight"`
	EmptyKegWeightUnit string  `json:"empty_keg_weight_unit"`
	StartVolume        float64 `json:"start_volume"`
	StartVolumeUnit    string  `json:"start_volume_unit"`
	DisplayVolumeUnit  string  `json:"display_volume_unit"`
}

// createDeviceResponse carries the device credentials. They are only
// returned once.
type createDeviceResponse struct {
	deviceView
	APIKey string `json:"api_key"`
	Token  string `json:"token"`
}

// handleListDevices returns all devices with their measurement statistics.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.devices.ListSummaries(r.Context())
	if err != nil {
		s.logger.Error("failed to list devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	views := s.views(r.Context(), summaries)
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
	})
}

// handleCreateDevice registers a new keg monitor.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ChipID) == "" {
		writeBadRequest(w, "chip_id is required")
		return
	}
	if req.ChipType == "" {
		req.ChipType = device.ChipTypeParticle
	}
	if err := device.ValidateChipType(req.ChipType); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := device.ValidateType(device.Type(req.DeviceType)); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	if _, err := s.devices.GetByChip(ctx, req.ChipType, req.ChipID); err == nil {
		writeBadRequest(w, "Device already exists")
		return
	} else if !errors.Is(err, device.ErrDeviceNotFound) {
		s.logger.Error("failed to check for existing device", "error", err)
		writeInternalError(w, "failed to create device")
		return
	}

	dev := &device.Device{
		Name:               req.Name,
		ChipType:           req.ChipType,
		ChipID:             req.ChipID,
		ChipModel:          req.ChipModel,
		DeviceType:         device.Type(req.DeviceType),
		EmptyKegWeight:     req.EmptyKegWeight,
		EmptyKegWeightUnit: req.EmptyKegWeightUnit,
		StartVolume:        req.StartVolume,
		StartVolumeUnit:    req.StartVolumeUnit,
		DisplayVolumeUnit:  req.DisplayVolumeUnit,
	}
	device.ApplyDefaults(dev)
	if dev.Name == "" {
		dev.Name = s.describe(ctx, dev)
	}

	key, err := auth.GenerateAPIKey(s.secCfg.APIKeys.Length)
	if err != nil {
		s.logger.Error("failed to generate device api key", "error", err)
		writeInternalError(w, "failed to create device")
		return
	}
	dev.APIKey = key

	if err := device.Validate(dev); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.devices.Create(ctx, dev); err != nil {
		if errors.Is(err, device.ErrDeviceExists) {
			writeBadRequest(w, "Device already exists")
			return
		}
		s.logger.Error("failed to create device", "error", err)
		writeInternalError(w, "failed to create device")
		return
	}

	s.logger.Info("device registered", "device_id", dev.ID, "chip_id", dev.ChipID, "device_type", string(dev.DeviceType))
	writeJSON(w, http.StatusCreated, createDeviceResponse{
		deviceView: s.view(ctx, &device.Summary{Device: dev}, false),
		APIKey:     key,
		Token:      auth.EncodeToken(auth.KindDevice, key),
	})
}

// handleFindDevice looks a device up by chip.
func (s *Server) handleFindDevice(w http.ResponseWriter, r *http.Request) {
	chipID := strings.TrimSpace(r.URL.Query().Get("chip_id"))
	if chipID == "" {
		writeBadRequest(w, "chip_id is required")
		return
	}
	chipType := r.URL.Query().Get("chip_type")
	if chipType == "" {
		chipType = device.ChipTypeParticle
	} else if !strings.EqualFold(chipType, device.ChipTypeParticle) {
		writeBadRequest(w, "Invalid chip_type.  Currently only 'Particle' is supported")
		return
	}

	dev, err := s.devices.GetByChip(r.Context(), chipType, chipID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to find device", "chip_id", chipID, "error", err)
		writeInternalError(w, "failed to find device")
		return
	}

	summary, err := s.devices.GetSummary(r.Context(), dev.ID)
	if err != nil {
		s.logger.Error("failed to get device summary", "id", dev.ID, "error", err)
		writeInternalError(w, "failed to find device")
		return
	}
	views := []deviceView{s.view(r.Context(), summary, true)}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
	})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	summary, err := s.devices.GetSummary(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to get device", "id", id, "error", err)
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, s.view(r.Context(), summary, true))
}

// handlePatchDevice updates the mutable fields of a device.
func (s *Server) handlePatchDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	dev, ok := s.loadDevice(w, r, id)
	if !ok {
		return
	}

	var patch device.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if patch.ChipType != nil {
		if err := device.ValidateChipType(*patch.ChipType); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}
	if patch.DeviceType != nil {
		if err := device.ValidateType(device.Type(*patch.DeviceType)); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}

	patch.Apply(dev)
	device.ApplyDefaults(dev)
	if err := device.Validate(dev); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.devices.Update(ctx, dev); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrDeviceExists):
			writeBadRequest(w, "Device already exists")
		default:
			s.logger.Error("failed to update device", "id", id, "error", err)
			writeInternalError(w, "failed to update device")
		}
		return
	}

	summary, err := s.devices.GetSummary(ctx, id)
	if err != nil {
		s.logger.Error("failed to reload device", "id", id, "error", err)
		writeInternalError(w, "failed to update device")
		return
	}
	writeJSON(w, http.StatusOK, s.view(ctx, summary, true))
}

// handleDeleteDevice removes a device. Its measurements are kept.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.Delete(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to delete device", "id", id, "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	s.logger.Info("device deleted", "device_id", id)
	s.publish(r.Context(), events.New(events.TypeDeviceDeleted, id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// loadDevice fetches the device for a route, writing the error response
// when it cannot.
func (s *Server) loadDevice(w http.ResponseWriter, r *http.Request, id string) (*device.Device, bool) {
	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return nil, false
		}
		s.logger.Error("failed to get device", "id", id, "error", err)
		writeInternalError(w, "failed to get device")
		return nil, false
	}
	return dev, true
}

// views builds the list response, asking the provider for each device's
// online flag concurrently.
func (s *Server) views(ctx context.Context, summaries []device.Summary) []deviceView {
	views := make([]deviceView, len(summaries))

	var g errgroup.Group
	g.SetLimit(onlineLookupLimit)
	for i := range summaries {
		i := i
		g.Go(func() error {
			views[i] = s.view(ctx, &summaries[i], true)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // view never fails

	return views
}

func (s *Server) view(ctx context.Context, summary *device.Summary, withOnline bool) deviceView {
	dev := summary.Device
	v := deviceView{
		Device:           dev,
		StateName:        dev.State.String(),
		MeasurementCount: summary.MeasurementCount,
	}

	if latest := summary.Latest; latest != nil {
		value := latest.Value
		taken := latest.TakenOn
		v.LatestMeasurement = &value
		v.LatestMeasurementUnit = latest.Unit
		v.LatestMeasurementTakenOn = &taken

		projection, err := device.Project(dev, latest, s.volumeCfg.DensityGPerML)
		if err != nil {
			s.logger.Warn("cannot project remaining volume", "device_id", dev.ID, "error", err)
		}
		v.Projection = projection
	}

	if withOnline {
		v.Online = s.online(ctx, dev)
	}
	return v
}

// online asks the provider whether the device is connected. Nil when the
// provider has no answer.
func (s *Server) online(ctx context.Context, dev *device.Device) *bool {
	outcome := s.provider.DispatchDevice(ctx, provider.OpOnline, dev)
	if outcome == nil || outcome.Failed() {
		return nil
	}
	online, ok := outcome.Data.(bool)
	if !ok {
		return nil
	}
	return &online
}

// describe is the default name of a new device: the provider's
// description, falling back to the chip id.
func (s *Server) describe(ctx context.Context, dev *device.Device) string {
	outcome := s.provider.DispatchDevice(ctx, provider.OpGetDescription, dev)
	if outcome != nil {
		if name, ok := outcome.Data.(string); ok && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	return dev.ChipID
}
