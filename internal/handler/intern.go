package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/smartwork/internal/middleware"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/service"
)

// InternHandler serves the intern area, mounted behind RequireArea(intern).
type InternHandler struct {
	directory *service.Directory
	tasks     *service.TaskService
	origin    string
	logger    *slog.Logger
}

func NewInternHandler(directory *service.Directory, tasks *service.TaskService, origin string, logger *slog.Logger) *InternHandler {
	return &InternHandler{directory: directory, tasks: tasks, origin: origin, logger: logger}
}

// HandleTasks handles GET /api/intern/tasks.
func (h *InternHandler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	intern := middleware.ProfileFromContext(r.Context())

	tasks, err := h.directory.ListTasksOf(r.Context(), intern.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskViews(h.origin, tasks))
}

// HandleTask handles GET /api/intern/tasks/{id}.
func (h *InternHandler) HandleTask(w http.ResponseWriter, r *http.Request) {
	intern := middleware.ProfileFromContext(r.Context())

	task, err := h.tasks.Get(r.Context(), intern.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskView(h.origin, *task))
}

type submitRequest struct {
	WebsiteURL string `json:"websiteURL"`
	GitHubURL  string `json:"githubURL"`
}

// HandleSubmit handles POST /api/intern/tasks/{id}/submit. Resubmitting a
// rejected task uses the same call.
func (h *InternHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	intern := middleware.ProfileFromContext(r.Context())

	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	task, err := h.tasks.Submit(r.Context(), intern.ID, chi.URLParam(r, "id"), req.WebsiteURL, req.GitHubURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskView(h.origin, *task))
}

// InternDashboard is everything the intern's home page shows. TeamLead is
// nil while the intern is unassigned.
type InternDashboard struct {
	Profile  *model.Profile `json:"profile"`
	TeamLead *LeadSummary   `json:"teamLead"`
	Tasks    []model.Task   `json:"tasks"`
}

// LeadSummary is the part of a lead's profile an intern gets to see.
type LeadSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TeamName string `json:"teamName"`
}

// HandleDashboard handles GET /api/intern/dashboard.
func (h *InternHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	intern := middleware.ProfileFromContext(r.Context())

	tasks, err := h.directory.ListTasksOf(r.Context(), intern.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	lead, err := h.directory.LeadOf(r.Context(), intern)
	if err != nil {
		writeError(w, err)
		return
	}

	dash := InternDashboard{Profile: intern, Tasks: taskViews(h.origin, tasks)}
	if lead != nil {
		dash.TeamLead = &LeadSummary{ID: lead.ID, Name: lead.Name, TeamName: lead.TeamName}
	}
	writeJSON(w, http.StatusOK, dash)
}
