package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
)

// updateDeviceRequest is the request body for PATCH /devices/{id}.
type updateDeviceRequest struct {
	Name *string `json:"name"`
	Mode *string `json:"mode"`
}

// handleListDevices returns every device with derived presence, plus the
// codes still waiting to be claimed.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := s.registry.ListDevices(ctx, s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	pairings, err := s.registry.PendingPairings(ctx)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices":  devices,
		"pairings": pairings,
		"count":    len(devices),
	})
}

// handlePendingPairings returns unclaimed, unexpired codes.
func (s *Server) handlePendingPairings(w http.ResponseWriter, r *http.Request) {
	pairings, err := s.registry.PendingPairings(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pairings)
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleDeviceHistory returns a device's recent heartbeats, oldest first.
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dev, err := s.registry.GetDevice(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	history, err := s.recorder.History(ctx, dev.ID, s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deviceId": dev.ID,
		"history":  history,
		"count":    len(history),
	})
}

// handleUpdateDevice renames a device and/or switches its mode.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == nil && req.Mode == nil {
		writeBadRequest(w, "name or mode is required")
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")

	// Validate both before applying either.
	if req.Name != nil {
		if _, err := device.ValidateName(*req.Name); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}
	if req.Mode != nil {
		if _, err := device.ParseMode(*req.Mode); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}

	var (
		dev *device.Device
		err error
	)
	if req.Name != nil {
		if dev, err = s.registry.Rename(ctx, id, *req.Name); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}
	if req.Mode != nil {
		if dev, err = s.registry.SetMode(ctx, id, *req.Mode); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleSetOverrides stores per-device schedule and/or settings overrides.
// An absent field is left alone; null clears it.
func (s *Server) handleSetOverrides(w http.ResponseWriter, r *http.Request) {
	var patch device.OverridesPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.registry.SetOverrides(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleClearOverrides removes both overrides.
func (s *Server) handleClearOverrides(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.ClearOverrides(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleUnpair deletes a device and its heartbeat history.
func (s *Server) handleUnpair(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Unpair(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
