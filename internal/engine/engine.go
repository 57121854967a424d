package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/slok/rpa/internal/gateway"
	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/metrics"
	"github.com/slok/rpa/internal/model"
	"github.com/slok/rpa/internal/storage"
)

// pageEventsMethod is the protocol command sent once after connecting.
const pageEventsMethod = "Page.enable"

// CancelChecker reports if the cancellation of a task has been requested.
type CancelChecker interface {
	Cancelled() bool
}

// EngineConfig is the configuration for the execution engine.
type EngineConfig struct {
	Gateway    gateway.Gateway
	Repository storage.TaskRepository
	Metrics    metrics.Recorder
	// Sleep suspends the execution, it must return the context error when the context is done.
	Sleep       func(ctx context.Context, d time.Duration) error
	Now         func() time.Time
	RandFloat64 func() float64
	Logger      log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Gateway == nil {
		return fmt.Errorf("gateway is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}

	if c.Sleep == nil {
		c.Sleep = sleep
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	if c.RandFloat64 == nil {
		c.RandFloat64 = rand.Float64
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "engine.Engine"})

	return nil
}

// Engine drives a task through its execution phases: launch, connect, prime,
// step loop, finalize and disconnect.
type Engine struct {
	gw      gateway.Gateway
	repo    storage.TaskRepository
	metrics metrics.Recorder
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	rand    func() float64
	logger  log.Logger
}

// NewEngine creates a new execution engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		gw:      gateway.NewMeasured(cfg.Gateway, cfg.Metrics),
		repo:    cfg.Repository,
		metrics: cfg.Metrics,
		sleep:   cfg.Sleep,
		now:     cfg.Now,
		rand:    cfg.RandFloat64,
		logger:  cfg.Logger,
	}, nil
}

// RunRequest is the execution of a registered task.
type RunRequest struct {
	TaskID   string
	Template model.Template
	// Variables are the resolved template variables.
	Variables map[string]any
	Cancel    CancelChecker
}

// Run executes the task until it reaches a terminal status. Task failures are
// recorded on the task, the returned error is only for failures recording them.
func (e *Engine) Run(ctx context.Context, req RunRequest) error {
	logger := e.logger.WithValues(log.Kv{"task": req.TaskID, "template": req.Template.ID})
	start := e.now()
	e.metrics.TaskStarted(ctx)

	x := &execution{
		Engine: e,
		req:    req,
		logger: logger,
	}

	status, err := x.run(ctx)
	if err != nil {
		status = model.TaskStatusFailed
		logger.Warningf("Task failed: %s", err)

		// The failure must be recorded even when the execution context is gone.
		fctx := context.WithoutCancel(ctx)
		if !x.launchFailed {
			x.log(fctx, model.LogLevelError, 0, "Task failed: %s", err)
		}
		if err := x.finish(fctx, model.TaskStatusFailed); err != nil {
			logger.Errorf("Could not record task failure: %s", err)
			e.metrics.TaskFinished(ctx, status, e.now().Sub(start))
			return err
		}
	}

	e.metrics.TaskFinished(ctx, status, e.now().Sub(start))
	return nil
}

// execution is the state of a single task run.
type execution struct {
	*Engine
	req          RunRequest
	logger       log.Logger
	sessionID    string
	launchFailed bool
}

func (x *execution) run(ctx context.Context) (model.TaskStatus, error) {
	task, err := x.repo.GetTask(ctx, x.req.TaskID)
	if err != nil {
		return "", fmt.Errorf("could not get task: %w", err)
	}

	// Launch.
	x.log(ctx, model.LogLevelInfo, 0, "Launching %s with CDP...", task.Browser)
	err = x.update(ctx, func(t *model.Task) {
		t.Status = model.TaskStatusRunning
	})
	if err != nil {
		return "", err
	}

	session, err := x.gw.Launch(ctx, gateway.LaunchRequest{ProfilePath: task.ProfilePath, Browser: task.Browser})
	if err != nil {
		x.launchFailed = true
		x.log(ctx, model.LogLevelError, 0, "Could not launch %s: %s", task.Browser, err)
		return "", fmt.Errorf("could not launch browser: %w", err)
	}
	x.sessionID = session.ID
	defer x.disconnect(ctx)

	err = x.update(ctx, func(t *model.Task) {
		t.SessionID = session.ID
	})
	if err != nil {
		return "", err
	}
	x.log(ctx, model.LogLevelSuccess, 0, "Browser launched (session %s)", session.ID)

	// Connect.
	if err := x.gw.Connect(ctx, session.ID, session.Endpoint); err != nil {
		return "", fmt.Errorf("could not connect to browser: %w", err)
	}
	x.log(ctx, model.LogLevelSuccess, 0, "Connected to %s", session.Endpoint)

	// Prime.
	if err := x.gw.Execute(ctx, session.ID, pageEventsMethod, map[string]any{}); err != nil {
		return "", fmt.Errorf("could not enable page events: %w", err)
	}
	x.log(ctx, model.LogLevelSuccess, 0, "Page events enabled")

	// Steps.
	cancelled, failedSteps, err := x.runSteps(ctx)
	if err != nil {
		return "", err
	}

	// Finalize.
	status := model.TaskStatusCompleted
	if cancelled {
		status = model.TaskStatusCancelled
	}
	msg := fmt.Sprintf("Task %s", status)
	if failedSteps > 0 {
		msg = fmt.Sprintf("%s (%d step(s) failed)", msg, failedSteps)
	}
	x.log(ctx, model.LogLevelSuccess, 0, "%s", msg)
	x.logger.Infof("%s", msg)

	if err := x.finish(ctx, status); err != nil {
		return "", err
	}

	return status, nil
}

func (x *execution) runSteps(ctx context.Context) (cancelled bool, failed int, err error) {
	total := len(x.req.Template.Steps)
	for i, step := range x.req.Template.Steps {
		n := i + 1

		if x.req.Cancel != nil && x.req.Cancel.Cancelled() {
			x.log(ctx, model.LogLevelWarn, 0, "Task cancelled by user")
			return true, failed, nil
		}

		err := x.update(ctx, func(t *model.Task) {
			t.CurrentStep = n
			t.Progress = 100 * (n - 1) / total
		})
		if err != nil {
			return false, failed, err
		}
		x.log(ctx, model.LogLevelInfo, n, "Step %d/%d: %s", n, total, step.Description)

		start := x.now()
		out, err := x.runStep(ctx, step)
		x.metrics.StepExecuted(ctx, step.Action, err == nil, x.now().Sub(start))
		if err != nil {
			failed++
			x.log(ctx, model.LogLevelError, n, "Step %d failed: %s", n, err)
			x.logger.Debugf("Step %d failed: %s", n, err)
		} else {
			switch {
			case out.message == "":
			case out.warn:
				x.log(ctx, model.LogLevelWarn, n, "%s", out.message)
			default:
				x.log(ctx, model.LogLevelInfo, n, "%s", out.message)
			}
			x.log(ctx, model.LogLevelSuccess, n, "Step %d completed", n)
		}

		if err := x.sleep(ctx, x.humanDelay(step.HumanDelayOrDefault())); err != nil {
			return false, failed, fmt.Errorf("step %d pacing interrupted: %w", n, err)
		}
	}

	// The cancellation can arrive during the last step.
	return x.req.Cancel != nil && x.req.Cancel.Cancelled(), failed, nil
}

func (x *execution) humanDelay(r model.DelayRange) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(x.rand()*float64(r.Max-r.Min))
}

// finish sets the terminal status, an already terminal task is left untouched.
func (x *execution) finish(ctx context.Context, status model.TaskStatus) error {
	return x.update(ctx, func(t *model.Task) {
		end := x.now().UTC()
		t.Status = status
		t.EndTime = &end
		if status == model.TaskStatusCompleted {
			t.Progress = 100
		}
	})
}

func (x *execution) disconnect(ctx context.Context) {
	if err := x.gw.Disconnect(context.WithoutCancel(ctx), x.sessionID); err != nil {
		x.logger.Debugf("Ignoring disconnect error: %s", err)
	}
}

// update applies a change to the task. Changes rejected because the task was
// finished externally (e.g. cancelled) are ignored.
func (x *execution) update(ctx context.Context, mutate func(t *model.Task)) error {
	_, err := x.repo.UpdateTask(ctx, x.req.TaskID, func(t *model.Task) error {
		mutate(t)
		return nil
	})
	if errors.Is(err, model.ErrTaskFinished) {
		x.logger.Debugf("Ignoring update of finished task: %s", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	return nil
}

func (x *execution) log(ctx context.Context, level model.LogLevel, step int, format string, args ...any) {
	entry := model.LogEntry{
		Timestamp: x.now().UTC(),
		Level:     level,
		Step:      step,
		Message:   fmt.Sprintf(format, args...),
	}
	err := x.repo.AppendTaskLog(context.WithoutCancel(ctx), x.req.TaskID, entry)
	switch {
	case errors.Is(err, model.ErrTaskFinished):
		x.logger.Debugf("Ignoring log of finished task: %s", entry.Message)
	case err != nil:
		x.logger.Warningf("Could not append task log %q: %s", entry.Message, err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
