package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/smartwork/internal/auth"
	"github.com/sakif/smartwork/internal/blob/disk"
	"github.com/sakif/smartwork/internal/middleware"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository/live"
	"github.com/sakif/smartwork/internal/repository/sqlite"
	"github.com/sakif/smartwork/internal/service"
	"github.com/sakif/smartwork/internal/session"
)

const (
	testOrigin   = "http://files.test"
	testPassword = "correct-horse"
)

// testAPI is the full handler stack over an in-memory SQLite store, routed
// the way the server routes it.
type testAPI struct {
	router    chi.Router
	profiles  *live.Profiles
	tasks     *live.Tasks
	directory *service.Directory
	taskSvc   *service.TaskService
	tokens    *auth.TokenService
	uploads   *disk.Store
	events    *EventsHandler

	admin, lead, lead2, intern *model.Profile
}

type apiOption func(*apiConfig)

type apiConfig struct {
	maxUpload int64
	resolver  func(*live.Profiles) session.ProfileSource
}

func withMaxUpload(n int64) apiOption { return func(c *apiConfig) { c.maxUpload = n } }

func withProfileSource(fn func(*live.Profiles) session.ProfileSource) apiOption {
	return func(c *apiConfig) { c.resolver = fn }
}

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()
	cfg := apiConfig{maxUpload: 1 << 20}
	for _, o := range opts {
		o(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	profiles := live.NewProfiles(db, logger)
	tasks := live.NewTasks(db, logger)
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", 15*time.Minute)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)
	uploads, err := disk.New(t.TempDir(), cfg.maxUpload)
	require.NoError(t, err)

	directory := service.NewDirectory(profiles, tasks, db, passwords, logger)
	taskSvc := service.NewTaskService(tasks, profiles, logger)
	authn := service.NewAuthenticator(db, profiles, tokens, passwords, 720*time.Hour, logger)

	var source session.ProfileSource = profiles
	if cfg.resolver != nil {
		source = cfg.resolver(profiles)
	}

	authH := NewAuthHandler(authn, nil, nil, logger)
	accessH := NewAccessHandler(profiles, logger)
	adminH := NewAdminHandler(directory, logger)
	leadH := NewTeamLeadHandler(directory, taskSvc, uploads, testOrigin, cfg.maxUpload, logger)
	internH := NewInternHandler(directory, taskSvc, testOrigin, logger)
	eventsH := NewEventsHandler(session.NewProfileResolver(source, logger), directory, testOrigin, logger)

	r := chi.NewRouter()
	r.Post("/auth/login", authH.HandleLogin)
	r.Post("/auth/logout", authH.HandleLogout)
	r.With(auth.RequireAuth(tokens)).Post("/auth/password", authH.HandlePassword)
	r.Route("/api", func(r chi.Router) {
		r.With(auth.OptionalAuth(tokens)).Get("/access/{area}", accessH.HandleDecide)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authH.HandleMe)
			r.Get("/events", eventsH.HandleEvents)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens), middleware.RequireArea(model.AreaAdmin, profiles, logger))
			r.Get("/users", adminH.HandleListUsers)
			r.Post("/users", adminH.HandleCreateUser)
			r.Put("/interns/{internID}/lead", adminH.HandleAssignLead)
		})
		r.Route("/teamlead", func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens), middleware.RequireArea(model.AreaTeamLead, profiles, logger))
			r.Get("/interns", leadH.HandleInterns)
			r.Get("/tasks", leadH.HandleTasks)
			r.Post("/tasks", leadH.HandleCreateTask)
			r.Get("/tasks/{id}", leadH.HandleTask)
			r.Post("/tasks/{id}/approve", leadH.HandleApprove)
			r.Post("/tasks/{id}/reject", leadH.HandleReject)
			r.Post("/uploads", leadH.HandleUpload)
			r.Get("/dashboard", leadH.HandleDashboard)
		})
		r.Route("/intern", func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens), middleware.RequireArea(model.AreaIntern, profiles, logger))
			r.Get("/tasks", internH.HandleTasks)
			r.Get("/tasks/{id}", internH.HandleTask)
			r.Post("/tasks/{id}/submit", internH.HandleSubmit)
			r.Get("/dashboard", internH.HandleDashboard)
		})
	})

	api := &testAPI{
		router:    r,
		profiles:  profiles,
		tasks:     tasks,
		directory: directory,
		taskSvc:   taskSvc,
		tokens:    tokens,
		uploads:   uploads,
		events:    eventsH,
	}
	api.seed(t)
	return api
}

func (a *testAPI) seed(t *testing.T) {
	t.Helper()
	ctx := t.Context()
	provision := func(acc service.Account) *model.Profile {
		acc.Password = testPassword
		p, err := a.directory.ProvisionAccount(ctx, acc)
		require.NoError(t, err)
		return p
	}
	a.admin = provision(service.Account{Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin})
	a.lead = provision(service.Account{Name: "Lena", Email: "lena@example.com", Role: model.RoleTeamLead, TeamName: "Web"})
	a.lead2 = provision(service.Account{Name: "Lars", Email: "lars@example.com", Role: model.RoleTeamLead, TeamName: "Data"})
	leadID := a.lead.ID
	a.intern = provision(service.Account{Name: "Ira", Email: "ira@example.com", Role: model.RoleIntern, TeamLeadID: &leadID})
}

// do sends a request as subject (anonymous when empty) with an optional
// JSON body.
func (a *testAPI) do(t *testing.T, method, path, subject string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	a.authorize(t, req, subject)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) authorize(t *testing.T, req *http.Request, subject string) {
	t.Helper()
	if subject == "" {
		return
	}
	token, err := a.tokens.Generate(subject)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

// createTask has the seeded lead assign a task to the seeded intern.
func (a *testAPI) createTask(t *testing.T, title string) model.Task {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/teamlead/tasks", a.lead.ID, createTaskRequest{
		Title:       title,
		Description: "Build the landing page",
		Deadline:    "2026-11-01",
		AssignedTo:  a.intern.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Task](t, rec)
}
