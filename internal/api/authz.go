package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nerrad567/kiosk-fleet-core/internal/audit"
	"github.com/nerrad567/kiosk-fleet-core/internal/auth"
)

const (
	// ctxKeyPrincipal is the context key for the authenticated caller.
	ctxKeyPrincipal contextKey = "principal"
)

// Principal is an authenticated operator.
type Principal struct {
	Subject string
	Role    auth.Role
}

// Authorizer identifies the caller of an operator request.
type Authorizer interface {
	// Authorize returns the caller or an error wrapping auth.ErrTokenInvalid.
	Authorize(r *http.Request) (*Principal, error)
}

// JWTAuthorizer accepts HS256 bearer tokens issued by auth.GenerateAccessToken.
type JWTAuthorizer struct {
	Secret string
}

// Authorize validates the Authorization: Bearer header.
func (a JWTAuthorizer) Authorize(r *http.Request) (*Principal, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: missing bearer token", auth.ErrTokenInvalid)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(token), a.Secret)
	if err != nil {
		return nil, err
	}
	return &Principal{Subject: claims.Subject, Role: claims.Role}, nil
}

// principalFrom returns the caller stored by authMiddleware.
func principalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(*Principal)
	return p, ok
}

// authMiddleware rejects requests without a valid operator token and
// attributes the rest to the caller for auditing.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.authorizer.Authorize(r)
		if err != nil {
			s.logger.Debug("authorization failed", "path", r.URL.Path, "error", err)
			writeUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyPrincipal, p)
		ctx = audit.WithActor(ctx, p.Subject, audit.SourceAPI)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission rejects callers whose role lacks perm. It must run
// after authMiddleware.
func (s *Server) requirePermission(perm auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok {
				writeUnauthorized(w, "authentication required")
				return
			}
			if !auth.HasPermission(p.Role, perm) {
				writeForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
