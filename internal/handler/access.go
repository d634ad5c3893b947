package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/smartwork/internal/access"
	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/middleware"
	"github.com/sakif/smartwork/internal/model"
)

// AccessHandler lets a front-end ask where the current user may go.
type AccessHandler struct {
	profiles middleware.ProfileLoader
	logger   *slog.Logger
}

func NewAccessHandler(profiles middleware.ProfileLoader, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{profiles: profiles, logger: logger}
}

// DecisionResponse mirrors access.Decision. Target and Location are empty
// unless Outcome is "redirect".
type DecisionResponse struct {
	Area     model.Area `json:"area"`
	Outcome  string     `json:"outcome"`
	Target   model.Area `json:"target,omitempty"`
	Location string     `json:"location,omitempty"`
}

// HandleDecide answers GET /api/access/{area}.
func (h *AccessHandler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "area")
	area, ok := model.ParseArea(raw)
	if !ok {
		writeError(w, apperror.NotFound("area", raw))
		return
	}

	p, err := middleware.LoadProfile(r.Context(), h.profiles)
	if err != nil {
		h.logger.Error("loading profile for access check", slog.String("error", err.Error()))
		writeError(w, apperror.StoreFailed("loading profile", err))
		return
	}

	d := access.Decide(p, false, area)
	resp := DecisionResponse{Area: area, Outcome: d.Outcome.String()}
	if d.Outcome == access.Redirect {
		resp.Target = d.Target
		resp.Location = d.Target.Path()
	}
	writeJSON(w, http.StatusOK, resp)
}
