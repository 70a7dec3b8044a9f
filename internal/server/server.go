// Package server is the composition root: it wires the store, services,
// handlers, and middleware into a chi router and owns the server
// lifecycle.
//
// Wiring flow:
//
//	main.go reads config → server.New() builds
//	  sqlite.DB → services → handlers → routes
//
// Each layer receives only what it needs: services get repository
// interfaces, handlers get services, and nothing below the handler layer
// touches HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/whitelist-registry/internal/auth"
	"github.com/sakif/whitelist-registry/internal/handler"
	"github.com/sakif/whitelist-registry/internal/middleware"
	sqliteRepo "github.com/sakif/whitelist-registry/internal/repository/sqlite"
	"github.com/sakif/whitelist-registry/internal/service"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port   int
	DBPath string

	JWTSecret string

	DiscordClientID     string
	DiscordClientSecret string
	DiscordCallbackURL  string
	DiscordGuildID      string

	XProfileURL string

	StaticDir string // optional; serves the frontend bundle when set
}

// Server holds the router and the resources it owns. The database
// connection is closed during graceful shutdown so the WAL is flushed
// and the file lock released.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain and registers every route.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes builds services and handlers and maps them onto the router.
//
// Route map:
//
//	POST   /api/password/verify           password gate
//	POST   /api/verify/x                  X click-through gate
//	GET    /api/verify/discord            Discord membership gate
//	POST   /api/register                  registration submit
//	PATCH  /api/register/{id}/discord     deferred Discord confirmation
//	GET    /auth/discord/login            OAuth entry
//	GET    /auth/callback                 OAuth return
//	POST   /auth/admin/login              admin session
//	POST   /auth/admin/bootstrap          first-run admin creation
//	POST   /auth/logout                   clear sessions
//	GET    /api/admin/passwords           list      (admin)
//	POST   /api/admin/passwords           create    (admin)
//	DELETE /api/admin/passwords/{id}      delete    (admin)
//	GET    /api/admin/registrations       list      (admin)
//
// Middleware order matters: RequestID and RealIP run before the logger
// so their values are available to it; Recoverer sits above everything
// that can panic.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	discord := auth.NewDiscordProvider(
		s.config.DiscordClientID,
		s.config.DiscordClientSecret,
		s.config.DiscordCallbackURL,
	)
	guilds := auth.NewGuildChecker(s.config.DiscordGuildID)
	hasher := auth.NewPasswordService()

	verificationSvc := service.NewVerificationService(guilds, s.config.XProfileURL, s.logger)
	registrationSvc := service.NewRegistrationService(s.db, s.db, s.logger)
	adminSvc := service.NewAdminService(s.db, s.db, s.db, tokens, hasher, s.logger)

	authHandler := handler.NewAuthHandler(discord, tokens, adminSvc, s.logger)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc, verificationSvc, s.logger)
	adminHandler := handler.NewAdminHandler(adminSvc, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/discord/login", authHandler.HandleDiscordLogin)
		r.Get("/callback", authHandler.HandleDiscordCallback)
		r.Post("/admin/login", authHandler.HandleAdminLogin)
		r.Post("/admin/bootstrap", authHandler.HandleAdminBootstrap)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// Public API. OptionalSession decodes the visitor cookie when present
	// but never rejects anyone — the Discord gate reports "unverified"
	// for anonymous visitors instead of failing the request.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalSession(tokens))

		r.Post("/api/password/verify", registrationHandler.HandleVerifyPassword)
		r.Post("/api/verify/x", registrationHandler.HandleVerifyX)
		r.Get("/api/verify/discord", registrationHandler.HandleCheckDiscord)
		r.Post("/api/register", registrationHandler.HandleSubmit)
		r.Patch("/api/register/{id}/discord", registrationHandler.HandleConfirmDiscord)
	})

	// Admin API: valid admin JWT plus a live admin row, on every request.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin(tokens, s.db, s.logger))

		r.Get("/api/admin/passwords", adminHandler.HandleListPasswords)
		r.Post("/api/admin/passwords", adminHandler.HandleCreatePassword)
		r.Delete("/api/admin/passwords/{id}", adminHandler.HandleDeletePassword)
		r.Get("/api/admin/registrations", adminHandler.HandleListRegistrations)
	})

	if s.config.StaticDir != "" {
		fileServer := http.FileServer(http.Dir(s.config.StaticDir))
		s.router.Handle("/*", fileServer)
	}

	return nil
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30
// seconds, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
