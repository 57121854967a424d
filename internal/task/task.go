package task

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/rpa/internal/engine"
	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
	"github.com/slok/rpa/internal/storage"
)

// DefaultBrowser is the browser used when a task doesn't set one.
const DefaultBrowser = "chrome"

// CancelToken is the cooperative cancellation flag of a task.
type CancelToken struct {
	cancelled atomic.Bool
}

// Cancel sets the flag, it's safe to call it multiple times.
func (c *CancelToken) Cancel() { c.cancelled.Store(true) }

// Cancelled returns true once Cancel has been called.
func (c *CancelToken) Cancelled() bool { return c.cancelled.Load() }

// Runner executes a registered task until it finishes.
type Runner interface {
	Run(ctx context.Context, req engine.RunRequest) error
}

// RegistryConfig is the configuration of the task registry.
type RegistryConfig struct {
	Runner     Runner
	Repository storage.TaskRepository
	// Context is the lifetime of the executions, they never use the caller context.
	Context context.Context
	Now     func() time.Time
	IDGen   func() string
	Logger  log.Logger
}

func (c *RegistryConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Context == nil {
		c.Context = context.Background()
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	if c.IDGen == nil {
		c.IDGen = func() string { return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String() }
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.Registry"})

	return nil
}

// Registry is the entry point to start, cancel and observe tasks. Tasks live
// in the repository, the registry only keeps their cancellation tokens.
type Registry struct {
	runner Runner
	repo   storage.TaskRepository
	ctx    context.Context
	now    func() time.Time
	idGen  func() string
	logger log.Logger

	mu     sync.Mutex
	tokens map[string]*CancelToken
	// done is closed once the execution of the task returns.
	done map[string]chan struct{}
	wg   sync.WaitGroup
}

// NewRegistry returns a new task registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Registry{
		runner: cfg.Runner,
		repo:   cfg.Repository,
		ctx:    cfg.Context,
		now:    cfg.Now,
		idGen:  cfg.IDGen,
		logger: cfg.Logger,
		tokens: map[string]*CancelToken{},
		done:   map[string]chan struct{}{},
	}, nil
}

// StartRequest is the request to start a task.
type StartRequest struct {
	Template    model.Template
	ProfilePath string
	ProfileName string
	Browser     string
	Variables   map[string]any
}

func (r StartRequest) validate() error {
	if r.ProfilePath == "" {
		return fmt.Errorf("profile path is required: %w", model.ErrNotValid)
	}

	if err := r.Template.Validate(); err != nil {
		return err
	}

	return nil
}

// StartTask registers a pending task and starts its execution in background.
// It returns as soon as the task is registered.
func (r *Registry) StartTask(ctx context.Context, req StartRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", fmt.Errorf("invalid request: %w", err)
	}

	vars, err := req.Template.ResolveVariables(req.Variables)
	if err != nil {
		return "", fmt.Errorf("could not resolve variables: %w", err)
	}

	browser := req.Browser
	if browser == "" {
		browser = DefaultBrowser
	}

	t := model.Task{
		ID:            r.idGen(),
		TemplateID:    req.Template.ID,
		TemplateTitle: req.Template.Title(),
		ProfilePath:   req.ProfilePath,
		ProfileName:   req.ProfileName,
		Browser:       browser,
		Status:        model.TaskStatusPending,
		TotalSteps:    len(req.Template.Steps),
		StartTime:     r.now().UTC(),
		Variables:     vars,
	}

	token := &CancelToken{}
	done := make(chan struct{})
	r.mu.Lock()
	r.tokens[t.ID] = token
	r.done[t.ID] = done
	r.mu.Unlock()

	if err := r.repo.CreateTask(ctx, t); err != nil {
		r.dropToken(t.ID)
		return "", fmt.Errorf("could not create task: %w", err)
	}

	logger := r.logger.WithValues(log.Kv{"task": t.ID})
	logger.Infof("Task started for template %s", t.TemplateID)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(done)

		err := r.runner.Run(r.ctx, engine.RunRequest{
			TaskID:    t.ID,
			Template:  req.Template,
			Variables: vars,
			Cancel:    token,
		})
		if err != nil {
			logger.Errorf("Task execution error: %s", err)
		}
	}()

	return t.ID, nil
}

// CancelTask requests the cancellation of a task and marks it as cancelled
// right away, the execution stops at the next step boundary.
func (r *Registry) CancelTask(ctx context.Context, id string) error {
	r.mu.Lock()
	token, ok := r.tokens[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}
	token.Cancel()

	_, err := r.repo.UpdateTask(ctx, id, func(t *model.Task) error {
		if t.Status.IsTerminal() {
			return fmt.Errorf("task %s is %s: %w", id, t.Status, model.ErrTaskFinished)
		}

		end := r.now().UTC()
		t.AppendLog(model.LogEntry{Timestamp: end, Level: model.LogLevelWarn, Message: "Task cancelled by user"})
		t.Status = model.TaskStatusCancelled
		t.EndTime = &end
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not cancel task: %w", err)
	}

	r.logger.WithValues(log.Kv{"task": id}).Infof("Task cancelled")

	return nil
}

// RemoveTask forgets a task. Missing tasks are ignored.
func (r *Registry) RemoveTask(ctx context.Context, id string) error {
	r.dropToken(id)

	err := r.repo.DeleteTask(ctx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("could not delete task: %w", err)
	}

	return nil
}

// GetTask returns a task snapshot.
func (r *Registry) GetTask(ctx context.Context, id string) (*model.Task, error) {
	t, err := r.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}
	return t, nil
}

// Tasks returns all the tasks sorted by start time.
func (r *Registry) Tasks(ctx context.Context) ([]model.Task, error) {
	return r.filterTasks(ctx, func(model.TaskStatus) bool { return true })
}

// ActiveTasks returns the running and paused tasks.
func (r *Registry) ActiveTasks(ctx context.Context) ([]model.Task, error) {
	return r.filterTasks(ctx, model.TaskStatus.IsActive)
}

// TaskHistory returns the finished tasks.
func (r *Registry) TaskHistory(ctx context.Context) ([]model.Task, error) {
	return r.filterTasks(ctx, model.TaskStatus.IsTerminal)
}

func (r *Registry) filterTasks(ctx context.Context, keep func(model.TaskStatus) bool) ([]model.Task, error) {
	all, err := r.repo.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(all))
	for _, t := range all {
		if keep(t.Status) {
			tasks = append(tasks, t)
		}
	}

	return tasks, nil
}

// Watch streams the task changes until the context is done.
func (r *Registry) Watch(ctx context.Context) (<-chan model.TaskEvent, error) {
	ch, err := r.repo.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not watch tasks: %w", err)
	}
	return ch, nil
}

// Wait blocks until all the started executions have returned.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// WaitTask blocks until the execution of the task returns or the context is done.
// Once it returns the task has every log of its execution.
func (r *Registry) WaitTask(ctx context.Context, id string) error {
	r.mu.Lock()
	done, ok := r.done[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) dropToken(id string) {
	r.mu.Lock()
	delete(r.tokens, id)
	delete(r.done, id)
	r.mu.Unlock()
}
