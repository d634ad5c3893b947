package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/blob"
	"github.com/sakif/smartwork/internal/middleware"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/service"
)

// multipartMemory is how much of a multipart body is held in memory before
// file parts spill to temporary files.
const multipartMemory = 8 << 20

// TeamLeadHandler serves the team lead area. Every route is mounted behind
// RequireArea(teamlead), so the caller's profile is in the request context.
type TeamLeadHandler struct {
	directory *service.Directory
	tasks     *service.TaskService
	blobs     blob.Store
	origin    string
	maxUpload int64
	logger    *slog.Logger
}

// NewTeamLeadHandler creates a TeamLeadHandler. origin is the base URL
// relative file URLs are resolved against.
func NewTeamLeadHandler(
	directory *service.Directory,
	tasks *service.TaskService,
	blobs blob.Store,
	origin string,
	maxUpload int64,
	logger *slog.Logger,
) *TeamLeadHandler {
	return &TeamLeadHandler{
		directory: directory,
		tasks:     tasks,
		blobs:     blobs,
		origin:    origin,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// HandleInterns handles GET /api/teamlead/interns.
func (h *TeamLeadHandler) HandleInterns(w http.ResponseWriter, r *http.Request) {
	lead := middleware.ProfileFromContext(r.Context())

	interns, err := h.directory.ListInternsOf(r.Context(), lead.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, interns)
}

// HandleTasks handles GET /api/teamlead/tasks.
func (h *TeamLeadHandler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	lead := middleware.ProfileFromContext(r.Context())

	tasks, err := h.directory.ListTasksCreatedBy(r.Context(), lead.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskViews(h.origin, tasks))
}

// HandleTask handles GET /api/teamlead/tasks/{id}.
func (h *TeamLeadHandler) HandleTask(w http.ResponseWriter, r *http.Request) {
	lead := middleware.ProfileFromContext(r.Context())

	task, err := h.tasks.Get(r.Context(), lead.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskView(h.origin, *task))
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	AssignedTo  string `json:"assignedTo"`
	FileURL     string `json:"fileURL"`
}

// HandleCreateTask handles POST /api/teamlead/tasks.
//
// The body is either JSON, optionally carrying a fileURL from an earlier
// upload, or multipart/form-data with the same fields and an optional
// "file" part that is uploaded first.
func (h *TeamLeadHandler) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	lead := middleware.ProfileFromContext(r.Context())

	var in service.NewTask
	if isMultipart(r) {
		form, err := h.parseMultipart(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		defer form.RemoveAll()

		in = service.NewTask{
			Title:       formValue(form, "title"),
			Description: formValue(form, "description"),
			Deadline:    formValue(form, "deadline"),
			AssignedTo:  formValue(form, "assignedTo"),
		}
		if files := form.File["file"]; len(files) > 0 {
			url, err := h.store(r, files[0])
			if err != nil {
				writeError(w, err)
				return
			}
			in.FileURL = url
		}
	} else {
		var req createTaskRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		in = service.NewTask(req)
	}

	task, err := h.tasks.Create(r.Context(), lead.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskView(h.origin, *task))
}

// HandleApprove handles POST /api/teamlead/tasks/{id}/approve.
func (h *TeamLeadHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.tasks.Approve)
}

// HandleReject handles POST /api/teamlead/tasks/{id}/reject.
func (h *TeamLeadHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.tasks.Reject)
}

func (h *TeamLeadHandler) review(w http.ResponseWriter, r *http.Request, decide func(ctx context.Context, leadID, taskID string) (*model.Task, error)) {
	lead := middleware.ProfileFromContext(r.Context())

	task, err := decide(r.Context(), lead.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskView(h.origin, *task))
}

// UploadResponse names a stored file. URL is what to send back as a task's
// fileURL; ResolvedURL is where a browser can fetch it.
type UploadResponse struct {
	URL         string `json:"url"`
	ResolvedURL string `json:"resolvedURL"`
}

// HandleUpload handles POST /api/teamlead/uploads with a "file" part.
func (h *TeamLeadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		writeError(w, apperror.ValidationFailed("file", "expected a multipart/form-data body with a file part"))
		return
	}
	form, err := h.parseMultipart(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer form.RemoveAll()

	files := form.File["file"]
	if len(files) == 0 {
		writeError(w, apperror.ValidationFailed("file", "file is required"))
		return
	}
	url, err := h.store(r, files[0])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{URL: url, ResolvedURL: blob.Resolve(h.origin, url)})
}

// TeamDashboard is everything the team lead's home page shows.
type TeamDashboard struct {
	TeamName      string                  `json:"teamName"`
	Interns       []model.Profile         `json:"interns"`
	TasksByIntern map[string][]model.Task `json:"tasksByIntern"`
}

// HandleDashboard handles GET /api/teamlead/dashboard.
func (h *TeamLeadHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	lead := middleware.ProfileFromContext(r.Context())

	interns, err := h.directory.ListInternsOf(r.Context(), lead.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := h.directory.ListTasksCreatedBy(r.Context(), lead.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	byIntern := make(map[string][]model.Task, len(interns))
	for _, in := range interns {
		byIntern[in.ID] = []model.Task{}
	}
	// Tasks of interns since moved to another lead stay listed here.
	for _, t := range tasks {
		byIntern[t.AssignedTo] = append(byIntern[t.AssignedTo], taskView(h.origin, t))
	}

	writeJSON(w, http.StatusOK, TeamDashboard{
		TeamName:      lead.TeamName,
		Interns:       interns,
		TasksByIntern: byIntern,
	})
}

func (h *TeamLeadHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, blob.TooLarge(h.maxUpload)
		}
		return nil, apperror.ValidationFailed("file", "invalid multipart body")
	}
	return r.MultipartForm, nil
}

func (h *TeamLeadHandler) store(r *http.Request, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", apperror.ValidationFailed("file", "could not read the uploaded file")
	}
	defer f.Close()

	url, err := h.blobs.Upload(r.Context(), fh.Filename, f)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return "", err
		}
		h.logger.Error("storing upload",
			slog.String("filename", fh.Filename),
			slog.String("error", err.Error()),
		)
		return "", apperror.StoreFailed("storing upload", err)
	}
	h.logger.Info("file uploaded", slog.String("url", url), slog.Int64("size", fh.Size))
	return url, nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
