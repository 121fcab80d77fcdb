package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/kiosk-fleet-core/internal/auth"
	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/document"
	"github.com/nerrad567/kiosk-fleet-core/internal/live"
	"github.com/nerrad567/kiosk-fleet-core/internal/resolver"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes. Clients branch on these, so they never change.
const (
	ErrCodeBadRequest           = "bad-request"
	ErrCodeNotFound             = "not-found"
	ErrCodeUnauthorized         = "unauthorised"
	ErrCodeForbidden            = "forbidden"
	ErrCodeInternal             = "internal-error"
	ErrCodeInvalidDevice        = "invalid-device"
	ErrCodeDeviceNotFound       = "device-not-found"
	ErrCodeCodeInvalid          = "code-invalid"
	ErrCodeCodeExpired          = "code-expired"
	ErrCodeCodeAlreadyClaimed   = "code-already-claimed"
	ErrCodeInvalidOverrideShape = "invalid-override-shape"
	ErrCodeInvalidName          = "invalid-name"
	ErrCodeInvalidMode          = "invalid-mode"
	ErrCodeInvalidDocument      = "invalid-document"
	ErrCodePairingUnavailable   = "pairing-unavailable"
	ErrCodeResolveFailed        = "resolve-failed"
	ErrCodeStorageUnavailable   = "storage-unavailable"
)

// errorMapping ties a sentinel to its response.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorMappings is checked in order with errors.Is; the first match wins.
var errorMappings = []errorMapping{
	{device.ErrInvalidDevice, http.StatusBadRequest, ErrCodeInvalidDevice, "malformed device id"},
	{device.ErrDeviceNotFound, http.StatusNotFound, ErrCodeDeviceNotFound, "device not found"},
	{device.ErrCodeInvalid, http.StatusNotFound, ErrCodeCodeInvalid, "pairing code not recognised"},
	{device.ErrCodeExpired, http.StatusGone, ErrCodeCodeExpired, "pairing code expired"},
	{device.ErrCodeAlreadyClaimed, http.StatusConflict, ErrCodeCodeAlreadyClaimed, "pairing code already claimed"},
	{device.ErrInvalidOverrideShape, http.StatusBadRequest, ErrCodeInvalidOverrideShape, "override does not match the document shape"},
	{device.ErrInvalidName, http.StatusBadRequest, ErrCodeInvalidName, "name must be 1-100 characters"},
	{device.ErrInvalidMode, http.StatusBadRequest, ErrCodeInvalidMode, "mode must be auto or override"},
	{device.ErrPairingUnavailable, http.StatusServiceUnavailable, ErrCodePairingUnavailable, "no pairing code available, try again"},
	{live.ErrConflictingScope, http.StatusBadRequest, ErrCodeBadRequest, "device and pair cannot be combined"},
	{document.ErrUnknownType, http.StatusNotFound, ErrCodeNotFound, "unknown document type"},
	{document.ErrNotFound, http.StatusNotFound, ErrCodeNotFound, "document not found"},
	{document.ErrInvalidData, http.StatusBadRequest, ErrCodeInvalidDocument, "document payload has the wrong shape"},
	{resolver.ErrResolveFailed, http.StatusInternalServerError, ErrCodeResolveFailed, "failed to resolve configuration"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials"},
	{auth.ErrOperatorInactive, http.StatusForbidden, ErrCodeForbidden, "account disabled"},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired token"},
	{auth.ErrForbidden, http.StatusForbidden, ErrCodeForbidden, "insufficient permissions"},
}

// lookupError returns the response for err. Anything unmapped comes from
// the store and is reported as storage-unavailable.
func lookupError(err error) Error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return Error{Status: m.status, Code: m.code, Message: m.message}
		}
	}
	return Error{
		Status:  http.StatusServiceUnavailable,
		Code:    ErrCodeStorageUnavailable,
		Message: "storage unavailable",
	}
}

// writeDomainError maps err to a structured response. Unmapped errors
// are logged because their detail is not returned to the client.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	e := lookupError(err)
	if e.Code == ErrCodeStorageUnavailable || e.Code == ErrCodeResolveFailed {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
			"error", err,
		)
	}
	writeError(w, e.Status, e.Code, e.Message)
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}
