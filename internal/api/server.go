package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sorteando-crawler/internal/auth"
	"github.com/xkilldash9x/sorteando-crawler/internal/automation"
	"github.com/xkilldash9x/sorteando-crawler/internal/config"
	"github.com/xkilldash9x/sorteando-crawler/internal/store"
)

// Automation runs the browser workflows behind the /sorteando endpoints.
type Automation interface {
	CreateEvent(ctx context.Context, req automation.CreateEventRequest) (*automation.CreateEventResult, error)
	Register(ctx context.Context, req automation.RegisterRequest) (*automation.RegistrationResult, error)
}

// Dependencies are the services the HTTP layer dispatches to.
type Dependencies struct {
	Automation Automation
	Venues     store.VenueRepository
	Locations  store.LocationRepository
	Auth       *auth.Service
}

// Server is the HTTP front of the crawler.
type Server struct {
	cfg        config.ServerConfig
	deps       Dependencies
	schemas    schemaSet
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// routeTimeout bounds the non-automation routes. Automation routes carry
// their own deadline.
const routeTimeout = 30 * time.Second

// NewServer compiles the request schemas and builds the router.
func NewServer(cfg config.ServerConfig, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Automation == nil || deps.Venues == nil || deps.Locations == nil || deps.Auth == nil {
		return nil, errors.New("api: all dependencies are required")
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		schemas: schemas,
		logger:  logger.Named("api"),
	}
	s.router = s.routes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)

	requireAuth := auth.RequireAuth(s.deps.Auth.Tokens())

	r.Route("/sorteando", func(r chi.Router) {
		r.Post("/novo", s.handleCreateEvent)
		r.Post("/inscrever", s.handleRegister)

		r.Route("/locais", func(r chi.Router) {
			r.Use(middleware.Timeout(routeTimeout))
			r.Get("/", s.handleListVenues)
			r.Get("/{id}", s.handleGetVenue)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, auth.RequireRole(auth.RoleAdmin))
				r.Post("/", s.handleCreateVenue)
				r.Post("/seed", s.handleSeedVenues)
				r.Put("/{id}", s.handleUpdateVenue)
				r.Delete("/{id}", s.handleDeleteVenue)
			})
		})
	})

	r.With(middleware.Timeout(routeTimeout)).Post("/location", s.handleSaveLocation)

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.Timeout(routeTimeout))
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.With(auth.OptionalAuth(s.deps.Auth.Tokens())).Post("/register", s.handleCreateUser)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/users", s.handleListUsers)
			r.Get("/users/{id}", s.handleGetUser)
			r.Put("/users/{id}", s.handleUpdateUser)
			r.Patch("/users/{id}/fcm-token", s.handleUpdateFCMToken)
			r.Post("/logout/{id}", s.handleLogout)
		})
	})
	return r
}

// Serve accepts connections on ln until ctx is canceled, then drains
// in-flight requests for at most server.shutdown_timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening.", zap.String("address", ln.Addr().String()))
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server, waiting for in-flight requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}
	<-errCh
	s.logger.Info("HTTP server stopped.")
	return nil
}

// ListenAndServe binds server.listen_addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("Hello World!"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
