package middleware

import (
	"net/http"

	"github.com/morningdash/morningdash/internal/api/models"
)

// Content security policies.
const (
	// APIContentSecurityPolicy blocks everything; JSON needs nothing.
	APIContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

	// DeckContentSecurityPolicy lets the deck load its own scripts, styles
	// and images.
	DeckContentSecurityPolicy = "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'"
)

// baseHeaders are sent on every API and deck response.
var baseHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
}

// SecurityHeaders sets the hardening headers with the API policy.
func SecurityHeaders(next http.Handler) http.Handler {
	return withPolicy(APIContentSecurityPolicy, next)
}

// DeckSecurityHeaders sets the hardening headers with the deck policy.
func DeckSecurityHeaders(next http.Handler) http.Handler {
	return withPolicy(DeckContentSecurityPolicy, next)
}

func withPolicy(csp string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range baseHeaders {
			h.Set(kv[0], kv[1])
		}
		h.Set("Content-Security-Policy", csp)
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests whose X-Forwarded-Proto (set by the load
// balancer) is not https. Requests without the header pass.
func RequireTLS(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !required {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" && proto != "https" {
				models.KindTLSRequired.
					New(GetRequestID(r.Context()), "This endpoint requires HTTPS").
					At(r.URL.Path).
					Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
