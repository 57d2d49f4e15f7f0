package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/keg-monitor-core/internal/audit"
)

// handleListActivity returns a page of the device's activity trail.
//
// Query parameters:
//   - action: filter by event type (device.state_changed, device.deleted)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeInternalError(w, "activity trail not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := s.loadDevice(w, r, id); !ok {
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{DeviceID: id, Action: q.Get("action")}

	var ok bool
	if filter.Limit, ok = queryInt(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, q.Get("offset"), "offset"); !ok {
		return
	}

	result, err := s.activity.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list activity", "device_id", id, "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queryInt parses an optional non-negative query parameter, writing a 400
// when it is malformed.
func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
