package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mssola/useragent"
)

type contextKeyDevice struct{}

// GetDevice retrieves the parsed device summary from the context.
func GetDevice(ctx context.Context) string {
	if device, ok := ctx.Value(contextKeyDevice{}).(string); ok {
		return device
	}
	return ""
}

// WithDevice injects a device summary, mainly for service unit tests.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, contextKeyDevice{}, device)
}

// Device parses the User-Agent header into a short human-readable summary
// that audit entries carry for forensics.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := useragent.New(r.UserAgent())
		name, version := ua.Browser()
		summary := ""
		if name != "" {
			summary = fmt.Sprintf("%s %s on %s", name, version, ua.OS())
		}
		next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), summary)))
	})
}
