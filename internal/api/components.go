package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthgrid/hearth-core/internal/inventory"
)

// handleListComponents returns the components of a house the caller
// belongs to.
//
// GET /api/v1/components?house_id=X
func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	houseID := r.URL.Query().Get("house_id")
	if houseID == "" {
		writeBadRequest(w, "house_id query parameter is required")
		return
	}

	if !s.requireMembership(w, r, houseID) {
		return
	}

	components, err := s.inventory.ListComponentsByHouse(r.Context(), houseID)
	if err != nil {
		s.logger.Error("listing components failed", "house_id", houseID, "error", err)
		writeInternalError(w, "failed to list components")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"components": components,
		"count":      len(components),
	})
}

// handleGetComponentState returns the last known state of a component.
//
// GET /api/v1/components/{id}/state
func (s *Server) handleGetComponentState(w http.ResponseWriter, r *http.Request) {
	componentID := chi.URLParam(r, "id")

	component, err := s.inventory.GetComponent(r.Context(), componentID)
	if err != nil {
		if errors.Is(err, inventory.ErrComponentNotFound) {
			writeNotFound(w, "component not found")
			return
		}
		writeInternalError(w, "failed to load component")
		return
	}

	if !s.requireMembership(w, r, component.HouseID) {
		return
	}

	state, err := s.inventory.GetComponentState(r.Context(), componentID)
	if err != nil {
		if errors.Is(err, inventory.ErrComponentNotFound) {
			// No state recorded yet; an empty document is the steady answer.
			writeJSON(w, http.StatusOK, map[string]any{
				"component_id": componentID,
				"state":        map[string]any{},
			})
			return
		}
		writeInternalError(w, "failed to load component state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"component_id": componentID,
		"state":        state.State,
		"updated_at":   state.UpdatedAt,
	})
}

// requireMembership verifies the authenticated caller belongs to the
// house. Writes the error response and returns false when they do not.
func (s *Server) requireMembership(w http.ResponseWriter, r *http.Request, houseID string) bool {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "authentication required")
		return false
	}

	member, err := s.houses.IsMember(r.Context(), houseID, claims.Subject)
	if err != nil {
		s.logger.Error("membership check failed", "house_id", houseID, "error", err)
		writeInternalError(w, "failed to verify house membership")
		return false
	}
	if !member {
		writeForbidden(w, "not a member of this house")
		return false
	}
	return true
}
