package taskwait

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
)

// TaskWatcher gives access to the tasks and their changes.
type TaskWatcher interface {
	GetTask(ctx context.Context, id string) (*model.Task, error)
	Watch(ctx context.Context) (<-chan model.TaskEvent, error)
}

// ServiceConfig is the configuration for the task wait service.
type ServiceConfig struct {
	Watcher TaskWatcher
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Watcher == nil {
		return fmt.Errorf("task watcher is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskWait"})

	return nil
}

// Service follows a task.
type Service struct {
	watcher TaskWatcher
	logger  log.Logger
}

// NewService creates a new task wait service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		watcher: cfg.Watcher,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the task wait request parameters.
type Request struct {
	TaskID string
	// OnLog is called once per task log entry, in order.
	OnLog func(model.LogEntry)
}

// Run follows the task until the context is done or the task is removed, and
// returns the last task snapshot. A terminal status doesn't end the wait, the
// caller decides when it ends. A task that is not terminal by then is an error.
func (s *Service) Run(ctx context.Context, req Request) (*model.Task, error) {
	events, err := s.watcher.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not watch tasks: %w", err)
	}

	last, err := s.watcher.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	emitted := 0
	emit := func(t *model.Task) {
		if req.OnLog == nil {
			return
		}
		for ; emitted < len(t.Logs); emitted++ {
			req.OnLog(t.Logs[emitted])
		}
	}
	emit(last)

	for ev := range events {
		if ev.Task.ID != req.TaskID {
			continue
		}

		t := ev.Task
		if len(t.Logs) < emitted {
			continue
		}
		emit(&t)

		if ev.Type == model.TaskEventRemoved {
			s.logger.Debugf("task %s removed while waiting", req.TaskID)
			return &t, nil
		}
		last = &t
	}

	// Dropped events are recovered from the final snapshot.
	final, err := s.watcher.GetTask(context.WithoutCancel(ctx), req.TaskID)
	switch {
	case errors.Is(err, model.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("could not get task: %w", err)
	default:
		last = final
		emit(last)
	}

	if !last.Status.IsTerminal() {
		return last, fmt.Errorf("task %s is still %s: %w", req.TaskID, last.Status, ctx.Err())
	}

	return last, nil
}
