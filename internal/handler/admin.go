package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/service"
)

// AdminHandler serves the admin area: viewing users, adding accounts and
// assigning interns to leads. Routes are mounted behind RequireArea(admin).
type AdminHandler struct {
	directory *service.Directory
	logger    *slog.Logger
}

func NewAdminHandler(directory *service.Directory, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{directory: directory, logger: logger}
}

// HandleListUsers handles GET /api/admin/users[?role=intern].
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	role := model.Role(r.URL.Query().Get("role"))

	profiles, err := h.directory.ListProfiles(r.Context(), role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

type createUserRequest struct {
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	Role       model.Role `json:"role"`
	TeamName   string     `json:"teamName"`
	TeamLeadID *string    `json:"teamLeadId"`
}

// HandleCreateUser handles POST /api/admin/users.
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.directory.ProvisionAccount(r.Context(), service.Account{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		TeamName:   req.TeamName,
		TeamLeadID: req.TeamLeadID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type assignLeadRequest struct {
	TeamLeadID string `json:"teamLeadId"`
}

// HandleAssignLead handles PUT /api/admin/interns/{internID}/lead.
func (h *AdminHandler) HandleAssignLead(w http.ResponseWriter, r *http.Request) {
	internID := chi.URLParam(r, "internID")

	var req assignLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.directory.AssignInternToLead(r.Context(), internID, req.TeamLeadID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
