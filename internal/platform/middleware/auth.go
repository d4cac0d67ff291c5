package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenClaims is what the token validator hands back for an accepted bearer
// token. The claims identify a credential, not prove it is still live; the
// handler must still consult the session store (revocation wins over tokens).
type TokenClaims struct {
	UserID       string
	CredentialID string
}

// TokenValidator validates session bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

type contextKeyUserID struct{}
type contextKeyCredentialID struct{}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(contextKeyUserID{}).(string); ok {
		return userID
	}
	return ""
}

// GetCredentialID retrieves the credential ID from the context.
func GetCredentialID(ctx context.Context) string {
	if credentialID, ok := ctx.Value(contextKeyCredentialID{}).(string); ok {
		return credentialID
	}
	return ""
}

// WithClaims injects token claims, mainly for handler unit tests.
func WithClaims(ctx context.Context, claims *TokenClaims) context.Context {
	ctx = context.WithValue(ctx, contextKeyUserID{}, claims.UserID)
	return context.WithValue(ctx, contextKeyCredentialID{}, claims.CredentialID)
}

// RequireAuth rejects requests without a valid session bearer token.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access - missing token",
					"request_id", GetRequestID(r.Context()),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"request_id", GetRequestID(r.Context()),
					"error", err.Error(),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
