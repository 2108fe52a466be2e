package core

import (
	"log/slog"
	"net/http"
	"strings"

	"growcycle/internal/types"
)

// RequireTriggerSecret guards job triggers with the shared bearer secret.
// It runs before any request validation so unauthenticated callers learn
// nothing about job names.
func (s *Server) RequireTriggerSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "missing bearer token", nil))
			return
		}
		if !s.Config.Jobs.TriggerSecret.Matches(token) {
			s.Logger.WarnContext(r.Context(), "job trigger rejected",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid bearer token", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractBearerToken returns the token of an "Bearer <token>" header value.
// The scheme is matched case-insensitively per RFC 7235.
func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
