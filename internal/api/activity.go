package api

import (
	"net/http"
	"strconv"

	"github.com/hearthgrid/hearth-core/internal/activity"
)

// handleListActivity returns the command history of a house, most
// recent first.
//
// GET /api/v1/activity?house_id=X&component_id=Y&limit=N&offset=M
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	houseID := r.URL.Query().Get("house_id")
	if houseID == "" {
		writeBadRequest(w, "house_id query parameter is required")
		return
	}

	if !s.requireMembership(w, r, houseID) {
		return
	}

	filter := activity.Filter{
		HouseID:     houseID,
		ComponentID: r.URL.Query().Get("component_id"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.activity.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing activity failed", "house_id", houseID, "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
