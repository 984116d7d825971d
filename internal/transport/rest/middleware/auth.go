package middleware

import (
	"context"
	"net/http"
	"strings"

	"songclash/internal/model"
	"songclash/internal/service"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authSvc *service.AuthService
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authSvc *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authSvc: authSvc}
}

// RequireToken validates a game token from the Authorization header or the
// token query param
func (m *AuthMiddleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			http.Error(w, `{"error":"missing authorization"}`, http.StatusUnauthorized)
			return
		}

		claims, err := m.authSvc.Validate(token)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireHost is RequireToken restricted to host tokens
func (m *AuthMiddleware) RequireHost(next http.Handler) http.Handler {
	return m.RequireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetClaims(r.Context()).IsHost() {
			http.Error(w, `{"error":"host token required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// GetClaims extracts the token claims from context
func GetClaims(ctx context.Context) *model.GameClaims {
	if v, ok := ctx.Value(ClaimsKey).(*model.GameClaims); ok {
		return v
	}
	return nil
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
