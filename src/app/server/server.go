// Package server provides HTTP server initialization and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"postcontest/src/app/http/handler"
	"postcontest/src/app/middleware"
	"postcontest/src/core/ports"
	"postcontest/src/core/usecase"
	"postcontest/src/infra/config"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg    *config.Config
	log    *slog.Logger
	router *gin.Engine
	http   *http.Server
	admin  gin.HandlerFunc

	// Handlers
	healthHandler      *handler.HealthHandler
	competitionHandler *handler.CompetitionHandler
	entryHandler       *handler.EntryHandler
	adminHandler       *handler.AdminHandler
	prizeHandler       *handler.PrizeHandler
}

// New creates a new Server with all dependencies wired up.
func New(cfg *config.Config, log *slog.Logger, svc *usecase.Services, clock ports.Clock) *Server {
	// Set Gin mode based on log level
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router without default middleware
	router := gin.New()

	s := &Server{
		cfg:                cfg,
		log:                log,
		router:             router,
		admin:              middleware.AdminAuth(svc.AdminAuth),
		healthHandler:      handler.NewHealthHandler(svc.Health, clock),
		competitionHandler: handler.NewCompetitionHandler(svc.Competitions, clock),
		entryHandler:       handler.NewEntryHandler(svc.Entries),
		adminHandler:       handler.NewAdminHandler(svc.Qualification, svc.Reconcile),
		prizeHandler:       handler.NewPrizeHandler(svc.Competitions, svc.Payments),
	}
	if !svc.AdminAuth.Enabled() {
		log.Warn("APP_ADMIN_TOKEN is empty; admin routes will reject every request")
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupHTTPServer()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	// Order matters: Recovery should be first to catch all panics
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.CORS(s.cfg.Server.AllowedOrigins()))
	s.router.Use(middleware.Logging(s.log))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check endpoints (no auth required)
	s.router.GET("/health", s.healthHandler.Health)
	s.router.GET("/health/detailed", s.healthHandler.DetailedHealth)

	// API v1 routes
	v1 := s.router.Group("/v1")
	{
		// Competitions
		v1.GET("/competitions", s.competitionHandler.List)
		v1.GET("/competitions/:id", s.competitionHandler.Get)
		v1.GET("/competitions/:id/rounds", s.competitionHandler.Rounds)
		v1.POST("/competitions/:id/participants", s.competitionHandler.Join)

		// Entries
		v1.GET("/rounds/:round_id/entries", s.entryHandler.List)
		v1.POST("/rounds/:round_id/entries", s.entryHandler.Submit)
	}

	admin := v1.Group("/admin", s.admin)
	{
		// Competition administration
		admin.POST("/competitions", s.competitionHandler.Create)
		admin.POST("/competitions/:id/archive", s.competitionHandler.Archive)
		admin.POST("/competitions/:id/rounds", s.competitionHandler.CreateRound)
		admin.PATCH("/rounds/:round_id", s.competitionHandler.UpdateRound)

		// Qualification and reconciliation
		admin.POST("/rounds/:round_id/evaluate", s.adminHandler.Evaluate)
		admin.POST("/competitions/:id/rebuild", s.adminHandler.Rebuild)
		admin.POST("/competitions/:id/sync", s.adminHandler.Sync)
		admin.POST("/competitions/:id/fix", s.adminHandler.Fix)
		admin.POST("/participants/:participant_id/disqualify", s.entryHandler.Disqualify)

		// Prizes and payments
		admin.POST("/competitions/:id/prizes", s.prizeHandler.Create)
		admin.GET("/competitions/:id/prizes", s.prizeHandler.List)
		admin.PATCH("/prizes/:prize_id", s.prizeHandler.Update)
		admin.GET("/prizes/:prize_id/payments", s.prizeHandler.Payments)
		admin.POST("/prizes/:prize_id/payments", s.prizeHandler.CreatePayment)
		admin.POST("/payments/:payment_id/complete", s.prizeHandler.Complete)
		admin.POST("/payments/:payment_id/fail", s.prizeHandler.Fail)
		admin.POST("/payments/:payment_id/retry", s.prizeHandler.Retry)
	}

	// Handle 404
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":       "NOT_FOUND",
				"message":    "The requested resource was not found",
				"request_id": middleware.GetRequestID(c),
			},
		})
	})
}

// setupHTTPServer configures the underlying HTTP server.
func (s *Server) setupHTTPServer() {
	s.http = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("starting HTTP server",
			"addr", s.cfg.Server.Addr(),
		)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.Shutdown()
	})

	return g.Wait()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.log.Info("shutting down server", "timeout", s.cfg.Server.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.log.Info("server stopped gracefully")
	return nil
}

// Router returns the Gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// WaitForReady waits until the server is ready to accept connections.
// Useful for integration tests.
func (s *Server) WaitForReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(fmt.Sprintf("http://%s/health", s.cfg.Server.Addr()))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("server not ready after %v", timeout)
}
