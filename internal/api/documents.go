package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/kiosk-fleet-core/internal/audit"
	"github.com/nerrad567/kiosk-fleet-core/internal/document"
)

// handleGetDocument returns the active version of a global document.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	t, err := document.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	doc, err := s.documents.Active(r.Context(), t)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if writeCacheable(w, r, doc.Fingerprint) {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleSaveDocument stores the request body as the new active version.
//
// Saving content identical to the active version keeps its version and
// returns 200; a new version returns 201.
func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
	t, err := document.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "request body too large or unreadable")
		return
	}
	if !json.Valid(body) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	doc, created, err := s.documents.Save(ctx, t, body)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	entry := audit.DocumentSaved(ctx, string(t), doc.Version, created)
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("writing audit entry", "action", entry.Action, "error", err)
	}

	s.logger.Info("document saved", "type", t, "version", doc.Version, "created", created)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	w.Header().Set("ETag", quoteETag(doc.Fingerprint))
	writeJSON(w, status, doc)
}

// handleDocumentHistory lists stored versions, newest first.
//
// Query parameters:
//   - limit: max versions (store default when absent)
func (s *Server) handleDocumentHistory(w http.ResponseWriter, r *http.Request) {
	t, err := document.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
	}

	docs, err := s.documents.History(r.Context(), t, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":     t,
		"versions": docs,
		"count":    len(docs),
	})
}
