// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/auth"
	"github.com/dayplan/dayplan/internal/task"
)

// TaskService is the task engine as seen by the API.
type TaskService interface {
	BucketKind() task.BucketKind
	Create(ctx context.Context, userID ulid.ULID, d task.Draft) (*task.Task, error)
	Get(ctx context.Context, userID, id ulid.ULID) (*task.Task, error)
	List(ctx context.Context, userID ulid.ULID, f task.Filter) ([]*task.Task, error)
	Delete(ctx context.Context, userID, id ulid.ULID) (*task.Task, error)
	UpdateFields(ctx context.Context, userID, id ulid.ULID, p task.Patch) (*task.Task, error)
	BulkReposition(ctx context.Context, userID ulid.ULID, items []task.Reposition) []task.RepositionResult
	Move(ctx context.Context, userID, id ulid.ULID, bucket task.Bucket, position int) (*task.Task, error)
}

// AccountService manages registration, login and credential changes.
type AccountService interface {
	Register(ctx context.Context, email, password string) (*auth.User, string, error)
	Login(ctx context.Context, email, password string) (*auth.User, string, error)
	Logout(ctx context.Context, userID ulid.ULID, token string) error
	Me(ctx context.Context, userID ulid.ULID) (*auth.User, error)
	ChangePassword(ctx context.Context, userID ulid.ULID, oldPassword, newPassword string) (string, error)
	ChangeEmail(ctx context.Context, userID ulid.ULID, newEmail, password string) (*auth.User, string, error)
}

// ResetService issues and redeems password reset codes.
type ResetService interface {
	RequestReset(ctx context.Context, email string) error
	RedeemReset(ctx context.Context, code, newPassword string) error
}

// TokenVerifier resolves a session token to its user.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*auth.User, error)
}

// Server routes API requests to the services.
type Server struct {
	tasks    TaskService
	accounts AccountService
	resets   ResetService
	tokens   TokenVerifier
	logger   *slog.Logger
	metrics  *Metrics
	origin   string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records per-route request metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCORSOrigin allows browser clients served from origin.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.origin = origin }
}

// NewServer creates an API server.
func NewServer(tasks TaskService, accounts AccountService, resets ResetService, tokens TokenVerifier, opts ...Option) (*Server, error) {
	switch {
	case tasks == nil:
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("task service is required")
	case accounts == nil:
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("account service is required")
	case resets == nil:
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("reset service is required")
	case tokens == nil:
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("token verifier is required")
	}
	s := &Server{
		tasks:    tasks,
		accounts: accounts,
		resets:   resets,
		tokens:   tokens,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "httpapi")
	return s, nil
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestContext)
	if s.metrics != nil {
		r.Use(s.metrics.middleware)
	}
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.origin))

	r.Post("/users", s.register)
	r.Post("/users/login", s.login)
	r.Post("/users/resetpassword", s.requestReset)
	r.Post("/users/newpassword", s.redeemReset)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/users/me", s.me)
		r.Delete("/users/me/token", s.logout)
		r.Patch("/users/updatepassword", s.changePassword)
		r.Patch("/users/updateemail", s.changeEmail)

		r.Post("/tasks", s.createTask)
		r.Get("/tasks", s.listTasks)
		r.Get("/tasks/{id}", s.getTask)
		r.Delete("/tasks/{id}", s.deleteTask)
		r.Patch("/tasks/{id}", s.updateTask)
		r.Patch("/taskspositions", s.bulkReposition)
		r.Patch("/taskposition", s.moveTask)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, s.logger, http.StatusNotFound, errorEnvelope{Error: errorBody{Code: "ROUTE_NOT_FOUND", Message: "not found"}})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, s.logger, http.StatusMethodNotAllowed, errorEnvelope{Error: errorBody{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"}})
	})
	return r
}
