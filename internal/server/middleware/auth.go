package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"flowsync/internal/server/handlers"
)

// AuthMiddleware validates the bearer access token and puts the user
// identity into the request context.
func AuthMiddleware(logger *slog.Logger, jwtConfig handlers.JWTConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("missing Authorization header")
				http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("invalid Authorization header format")
				http.Error(w, "Unauthorized: invalid token format", http.StatusUnauthorized)
				return
			}

			claims, err := handlers.ValidateAccessToken(jwtConfig, parts[1])
			if err != nil {
				logger.Warn("invalid access token", "error", err)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), handlers.UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, handlers.UsernameKey, claims.Username)

			logger.Debug("user authenticated", "user_id", claims.UserID, "username", claims.Username)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
