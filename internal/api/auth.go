package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/kiosk-fleet-core/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin authenticates an operator and returns a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	token, err := s.authenticator.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.Info("login failed", "username", req.Username, "error", err)
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("operator logged in", "username", req.Username, "role", token.Role)
	writeJSON(w, http.StatusOK, token)
}

// handleMe returns the authenticated caller and what it may do.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject":     p.Subject,
		"role":        p.Role,
		"permissions": auth.PermissionsForRole(p.Role),
	})
}
