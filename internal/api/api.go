package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/slok/rpa/internal/app/taskstart"
	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
)

// TaskRegistry is the task registry used by the API.
type TaskRegistry interface {
	GetTask(ctx context.Context, id string) (*model.Task, error)
	Tasks(ctx context.Context) ([]model.Task, error)
	ActiveTasks(ctx context.Context) ([]model.Task, error)
	TaskHistory(ctx context.Context) ([]model.Task, error)
	CancelTask(ctx context.Context, id string) error
	RemoveTask(ctx context.Context, id string) error
	Watch(ctx context.Context) (<-chan model.TaskEvent, error)
}

// TaskStarter starts template executions.
type TaskStarter interface {
	Run(ctx context.Context, req taskstart.Request) (*taskstart.Response, error)
}

// HandlerConfig is the configuration of the API handler.
type HandlerConfig struct {
	Registry TaskRegistry
	Starter  TaskStarter
	// APIKey is the bearer token required by the API, empty disables the authentication.
	APIKey string
	// MetricsHandler is served on /metrics when set.
	MetricsHandler http.Handler
	Version        string
	Logger         log.Logger
}

func (c *HandlerConfig) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("task registry is required")
	}

	if c.Starter == nil {
		return fmt.Errorf("task starter is required")
	}

	if c.Version == "" {
		c.Version = "dev"
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "api.Handler"})

	return nil
}

type handler struct {
	registry TaskRegistry
	starter  TaskStarter
	apiKey   string
	version  string
	upgrader websocket.Upgrader
	logger   log.Logger
}

// NewHandler returns the local automation API.
func NewHandler(cfg HandlerConfig) (http.Handler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	h := handler{
		registry: cfg.Registry,
		starter:  cfg.Starter,
		apiKey:   cfg.APIKey,
		version:  cfg.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local API, callers are authenticated with the API key.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: cfg.Logger,
	}

	router := chi.NewRouter()
	if cfg.MetricsHandler != nil {
		router.Handle("/metrics", cfg.MetricsHandler)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Get("/status", h.handleStatus)
		r.Route("/automation", func(r chi.Router) {
			r.Post("/execute", h.handleExecute)
			r.Get("/watch", h.handleWatch)
			r.Get("/tasks", h.handleListTasks)
			r.Get("/tasks/{id}", h.handleGetTask)
			r.Post("/tasks/{id}/cancel", h.handleCancelTask)
			r.Delete("/tasks/{id}", h.handleRemoveTask)
		})
	})

	return router, nil
}

func (h handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.apiKey)) != 1 {
			respondError(w, http.StatusUnauthorized, errors.New("invalid or missing API key"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrTaskFinished), errors.Is(err, model.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, model.ErrNotValid):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
