package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dbateam/secretvault/internal/server/auth"
	"github.com/dbateam/secretvault/internal/server/models"
)

type ctxKey string

const actorKey ctxKey = "actor"

// authMiddleware validates the bearer token and resolves the acting user row.
// Every /api route runs behind it.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		actor, err := s.users.GetByID(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFromContext returns the authenticated user stored by authMiddleware.
func actorFromContext(ctx context.Context) *models.User {
	actor, _ := ctx.Value(actorKey).(*models.User)
	return actor
}
