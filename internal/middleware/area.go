package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/smartwork/internal/access"
	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/auth"
	"github.com/sakif/smartwork/internal/model"
)

// ProfileLoader reads the profile of a signed-in subject.
type ProfileLoader interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
}

type profileKey struct{}

// ProfileFromContext returns the profile RequireArea admitted, or nil.
func ProfileFromContext(ctx context.Context) *model.Profile {
	p, _ := ctx.Value(profileKey{}).(*model.Profile)
	return p
}

// WithProfile returns ctx carrying p, as RequireArea would leave it.
func WithProfile(ctx context.Context, p *model.Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

// RedirectBody is the JSON sent alongside a 303 from RequireArea.
type RedirectBody struct {
	Redirect model.Area `json:"redirect"`
	Location string     `json:"location"`
}

// RequireArea admits a request only when access.Decide allows the caller's
// current profile into area. It must run after auth.OptionalAuth.
//
// A refusal is answered with 303 See Other pointing at the caller's own
// area. That is routine navigation and is logged at debug level only.
func RequireArea(area model.Area, profiles ProfileLoader, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := LoadProfile(r.Context(), profiles)
			if err != nil {
				logger.Error("loading profile for access check", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"error":   "store_error",
					"message": "the data store is unavailable, please retry",
				})
				return
			}

			d := access.Decide(p, false, area)
			if !d.Allowed() {
				logger.Debug("area redirect",
					slog.String("area", string(area)),
					slog.String("target", string(d.Target)),
				)
				WriteRedirect(w, d.Target)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), p)))
		})
	}
}

// LoadProfile returns the profile of the request's subject. Anonymous
// requests and subjects without a profile yield (nil, nil).
func LoadProfile(ctx context.Context, profiles ProfileLoader) (*model.Profile, error) {
	subjectID, ok := auth.SubjectIDFromContext(ctx)
	if !ok {
		return nil, nil
	}
	p, err := profiles.GetProfile(ctx, subjectID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// WriteRedirect answers 303 towards target.
func WriteRedirect(w http.ResponseWriter, target model.Area) {
	w.Header().Set("Location", target.Path())
	writeJSON(w, http.StatusSeeOther, RedirectBody{Redirect: target, Location: target.Path()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
