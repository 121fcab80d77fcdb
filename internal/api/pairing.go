package api

import (
	"encoding/json"
	"net/http"
)

// claimRequest is the request body for POST /pairing/claim.
type claimRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// handleBeginPairing issues a pairing code for a display to show.
func (s *Server) handleBeginPairing(w http.ResponseWriter, r *http.Request) {
	code, err := s.registry.BeginPairing(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"code":      code.Code,
		"expiresAt": code.ExpiresAt,
	})
}

// handlePollPairing reports whether the code in ?code= has been claimed.
func (s *Server) handlePollPairing(w http.ResponseWriter, r *http.Request) {
	status, err := s.registry.PollPairing(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleClaim turns a pending code into a managed device.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.registry.Claim(r.Context(), req.Code, req.Name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}
