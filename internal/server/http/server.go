// Package http exposes the account API over HTTP: sign-up, sign-in, refresh
// token rotation, password change and account deletion under /users, plus a
// database-backed /health probe.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/logging"
	"github.com/dmitrijs2005/stagepass/internal/server/services"
	"github.com/dmitrijs2005/stagepass/internal/server/validation"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
	pingTimeout       = 2 * time.Second
	maxBodyBytes      = 1 << 20
)

// UserService is the subset of services.UserService the handlers use.
type UserService interface {
	SignUp(ctx context.Context, attrs validation.SignUpAttributes) (*services.TokenPair, error)
	SignIn(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshSecret string) (*services.TokenPair, error)
	ChangePassword(ctx context.Context, userID, password, confirmation string) (*services.TokenPair, error)
	Deactivate(ctx context.Context, userID string) error
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// Pinger reports whether the backing store is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	address string
	users   UserService
	db      Pinger
	logger  logging.Logger
}

func NewServer(addr string, us UserService, db Pinger, l logging.Logger) *Server {
	return &Server{
		address: addr,
		users:   us,
		db:      db,
		logger:  l.With("module", "http_server"),
	}
}

// Router builds the chi route tree. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.recoverer)
	r.Use(s.logRequests)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not found", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed", nil))
	})

	r.Get("/health", s.health)

	r.Route("/users", func(r chi.Router) {
		r.Post("/sign_up", s.signUp)
		r.Post("/sign_in", s.signIn)
		r.Post("/tokens", s.refresh)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Patch("/passwords", s.changePassword)
			r.Delete("/delete", s.deleteAccount)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
