package api

import (
	"net/http"
)

// handleResolve returns a device's effective configuration.
//
// The ETag is the resolver's content hash of the effective schedule and
// settings, so a display can poll with If-None-Match and only download
// when something it renders has changed.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	result, err := s.resolver.Resolve(r.Context(), r.URL.Query().Get("device"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if writeCacheable(w, r, result.Meta.ETag) {
		return
	}
	writeJSON(w, http.StatusOK, result)
}
