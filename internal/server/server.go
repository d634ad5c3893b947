// Package server is the composition root: it opens the store and blob
// backend, builds the services and handlers, and mounts every route.
//
//	Server.New creates: store → live decorators → services → handlers → router
//
// Each layer only receives what it needs. Handlers never touch the store
// and services never see HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/smartwork/internal/auth"
	"github.com/sakif/smartwork/internal/blob"
	"github.com/sakif/smartwork/internal/blob/b2"
	"github.com/sakif/smartwork/internal/blob/disk"
	"github.com/sakif/smartwork/internal/config"
	"github.com/sakif/smartwork/internal/handler"
	"github.com/sakif/smartwork/internal/middleware"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
	boltRepo "github.com/sakif/smartwork/internal/repository/bolt"
	"github.com/sakif/smartwork/internal/repository/live"
	mongoRepo "github.com/sakif/smartwork/internal/repository/mongo"
	sqliteRepo "github.com/sakif/smartwork/internal/repository/sqlite"
	"github.com/sakif/smartwork/internal/service"
	"github.com/sakif/smartwork/internal/session"
)

const shutdownTimeout = 30 * time.Second

// Server owns the store connection and the router. Start closes the store
// once the HTTP server has stopped.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store
	blobs  blob.Store
	events *handler.EventsHandler
}

// New connects the backends named in cfg and wires every route.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		blobs:  blobs,
	}

	if err := s.setupRoutes(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMongo:
		db, err := mongoRepo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("opening mongo store: %w", err)
		}
		return db, nil
	case config.StoreBolt:
		db, err := boltRepo.New(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("opening bolt store: %w", err)
		}
		return db, nil
	default:
		if cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	}
}

func openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case config.BlobB2:
		st, err := b2.New(ctx, cfg.B2AccountID, cfg.B2AppKey, cfg.B2Bucket, cfg.MaxUploadBytes)
		if err != nil {
			return nil, fmt.Errorf("opening b2 bucket: %w", err)
		}
		return st, nil
	default:
		st, err := disk.New(cfg.UploadDir, cfg.MaxUploadBytes)
		if err != nil {
			return nil, fmt.Errorf("opening upload directory: %w", err)
		}
		return st, nil
	}
}

// setupRoutes builds the services and mounts the routes.
//
//	GET  /healthz
//	GET  /uploads/*                          files of the disk blob backend
//	POST /auth/login | /auth/logout | /auth/password
//	GET  /auth/google/login | /auth/google/callback
//	GET  /api/me | /api/events | /api/access/{area}
//	     /api/admin/*     behind RequireArea(admin)
//	     /api/teamlead/*  behind RequireArea(teamlead)
//	     /api/intern/*    behind RequireArea(intern)
//
// Middleware order: RequestID, RealIP, Logger, Recoverer.
func (s *Server) setupRoutes(ctx context.Context) error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	profiles := live.NewProfiles(s.store, s.logger)
	tasks := live.NewTasks(s.store, s.logger)

	directory := service.NewDirectory(profiles, tasks, s.store, passwords, s.logger)
	taskService := service.NewTaskService(tasks, profiles, s.logger)
	authn := service.NewAuthenticator(s.store, profiles, tokens, passwords, cfg.RememberTTL, s.logger)

	if cfg.BootstrapAdminEmail != "" {
		if err := directory.BootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword, cfg.BootstrapAdminName); err != nil {
			return fmt.Errorf("bootstrapping admin: %w", err)
		}
	}

	var google *auth.GoogleProvider
	var stateKey []byte
	if cfg.GoogleEnabled() {
		google = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
		stateKey = []byte(cfg.StateHashKey)
	}

	authHandler := handler.NewAuthHandler(authn, google, stateKey, s.logger)
	accessHandler := handler.NewAccessHandler(profiles, s.logger)
	adminHandler := handler.NewAdminHandler(directory, s.logger)
	leadHandler := handler.NewTeamLeadHandler(directory, taskService, s.blobs, cfg.FileOrigin, cfg.MaxUploadBytes, s.logger)
	internHandler := handler.NewInternHandler(directory, taskService, cfg.FileOrigin, s.logger)
	eventsHandler := handler.NewEventsHandler(session.NewProfileResolver(profiles, s.logger), directory, cfg.FileOrigin, s.logger)
	s.events = eventsHandler

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)
	area := func(a model.Area) func(http.Handler) http.Handler {
		return middleware.RequireArea(a, profiles, s.logger)
	}

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if st, ok := s.blobs.(*disk.Store); ok {
		files := http.FileServer(http.Dir(st.Dir()))
		r.Handle(disk.URLPrefix+"*", http.StripPrefix(disk.URLPrefix, files))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.With(requireAuth).Post("/password", authHandler.HandlePassword)
		r.Get("/google/login", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
	})

	r.Route("/api", func(r chi.Router) {
		r.With(optionalAuth).Get("/access/{area}", accessHandler.HandleDecide)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", authHandler.HandleMe)
			r.Get("/events", eventsHandler.HandleEvents)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(optionalAuth, area(model.AreaAdmin))
			r.Get("/users", adminHandler.HandleListUsers)
			r.Post("/users", adminHandler.HandleCreateUser)
			r.Put("/interns/{internID}/lead", adminHandler.HandleAssignLead)
		})

		r.Route("/teamlead", func(r chi.Router) {
			r.Use(optionalAuth, area(model.AreaTeamLead))
			r.Get("/dashboard", leadHandler.HandleDashboard)
			r.Get("/interns", leadHandler.HandleInterns)
			r.Get("/tasks", leadHandler.HandleTasks)
			r.Post("/tasks", leadHandler.HandleCreateTask)
			r.Get("/tasks/{id}", leadHandler.HandleTask)
			r.Post("/tasks/{id}/approve", leadHandler.HandleApprove)
			r.Post("/tasks/{id}/reject", leadHandler.HandleReject)
			r.Post("/uploads", leadHandler.HandleUpload)
		})

		r.Route("/intern", func(r chi.Router) {
			r.Use(optionalAuth, area(model.AreaIntern))
			r.Get("/dashboard", internHandler.HandleDashboard)
			r.Get("/tasks", internHandler.HandleTasks)
			r.Get("/tasks/{id}", internHandler.HandleTask)
			r.Post("/tasks/{id}/submit", internHandler.HandleSubmit)
		})
	})

	return nil
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store. Start calls it on the way out.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv.RegisterOnShutdown(s.events.Close)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("store", s.config.StoreBackend),
			slog.String("blobs", s.config.BlobBackend),
			slog.Bool("google", s.config.GoogleEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
