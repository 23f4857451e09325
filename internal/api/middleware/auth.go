package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/morningdash/morningdash/internal/api/models"
	"github.com/morningdash/morningdash/internal/auth"
)

// operatorKey is the context key for the authenticated operator.
type operatorKey struct{}

// TokenValidator validates bearer tokens. Implemented by *auth.JWTService.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.JWTClaims, error)
}

// Auth requires a bearer token granting scope and stores its subject as the
// request's operator. A nil validator disables the check.
func Auth(validator TokenValidator, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r.Header.Get("Authorization"))
			if problem != "" {
				writeUnauthorized(w, r, problem)
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			switch {
			case errors.Is(err, auth.ErrAccessTokenExpired):
				writeUnauthorized(w, r, "access token has expired")
				return
			case errors.Is(err, auth.ErrInvalidAccessToken):
				writeUnauthorized(w, r, "invalid access token")
				return
			case err != nil:
				writeUnauthorized(w, r, "authentication failed")
				return
			}

			if scope != "" && !claims.HasScope(scope) {
				models.KindForbidden.
					New(GetRequestID(r.Context()), auth.ErrMissingScope.Error()+": "+scope).
					At(r.URL.Path).
					Write(w)
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header. The scheme
// is matched case-insensitively. A non-empty problem describes a bad header.
func bearerToken(header string) (token, problem string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, rest, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	if token = strings.TrimSpace(rest); token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

// writeUnauthorized challenges for a bearer token. The response package
// imports this one, so problems are written directly.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="morningdash"`)
	models.KindUnauthorized.New(GetRequestID(r.Context()), detail).At(r.URL.Path).Write(w)
}

// GetOperator returns the authenticated operator, or "" when the request
// passed no Auth middleware.
func GetOperator(ctx context.Context) string {
	if id, ok := ctx.Value(operatorKey{}).(string); ok {
		return id
	}
	return ""
}
