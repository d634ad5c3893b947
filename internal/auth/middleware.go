package auth

// HTTP side of the package. Two middlewares share one token extractor:
//
//	RequireAuth   401 without a valid token (used for /api/me, /api/events)
//	OptionalAuth  never refuses; anonymous requests pass with no subject
//
// OptionalAuth exists for the area gates. An anonymous visitor asking for
// /api/admin must get the access decision (a redirect to login), not a bare
// 401, so the gate needs to run with or without a subject.

import (
	"context"
	"net/http"
	"strings"
)

// CookieName is the cookie that carries the session token.
const CookieName = "session"

// contextKey is unexported so no other package can collide with or forge
// the subject id stored in a request context.
type contextKey string

const subjectIDKey contextKey = "subjectID"

// RequireAuth answers 401 unless the request carries a valid session token,
// and otherwise stores the subject id in the request context.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subjectID, err := extractSubjectID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"sign in required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubjectID(r.Context(), subjectID)))
		})
	}
}

// OptionalAuth stores the subject id when a valid token is present and
// lets anonymous requests through unchanged.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subjectID, err := extractSubjectID(r, tokens); err == nil {
				r = r.WithContext(WithSubjectID(r.Context(), subjectID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithSubjectID returns ctx carrying subjectID. Handler tests use it to
// skip token handling.
func WithSubjectID(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectIDKey, subjectID)
}

// SubjectIDFromContext returns ("", false) for anonymous requests.
func SubjectIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subjectIDKey).(string)
	return id, ok && id != ""
}

// extractSubjectID prefers the session cookie and falls back to an
// "Authorization: Bearer" header for non-browser clients.
func extractSubjectID(r *http.Request, tokens *TokenService) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		return tokens.Validate(cookie.Value)
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return tokens.Validate(strings.TrimPrefix(h, "Bearer "))
	}
	return "", http.ErrNoCookie
}
