package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/rpa/internal/app/taskstart"
	"github.com/slok/rpa/internal/app/taskwait"
	"github.com/slok/rpa/internal/model"
	storageio "github.com/slok/rpa/internal/storage/io"
)

// StartTaskOpts are the options to start a task. Exactly one template source is
// used, in this order: Template, TemplateFile, TemplateID.
type StartTaskOpts struct {
	// Template is a YAML or JSON template document.
	Template []byte
	// TemplateFile is the path of a YAML or JSON template document.
	TemplateFile string
	// TemplateID is the ID of a catalog template, see [Client.ImportTemplate].
	TemplateID string

	// ProfilePath is the browser profile data directory. Required.
	ProfilePath string
	ProfileName string
	// Browser is chrome, chromium, brave or edge. Default: chrome.
	Browser string
	// Variables are the values of the template variables. Strings are coerced to
	// the declared variable type.
	Variables map[string]any
}

// StartTask registers a task and starts its execution in background. It returns
// as soon as the task is registered, use [Client.WaitTask] to follow it.
//
// Returns [ErrNotValid] when the template or the variables are not valid, and
// [ErrNotFound] when the template doesn't exist.
func (c *Client) StartTask(ctx context.Context, opts StartTaskOpts) (*Task, error) {
	req := taskstart.Request{
		TemplateID:  opts.TemplateID,
		ProfilePath: opts.ProfilePath,
		ProfileName: opts.ProfileName,
		Browser:     opts.Browser,
		Variables:   opts.Variables,
	}

	switch {
	case len(opts.Template) > 0:
		tpl, err := storageio.DecodeTemplate(opts.Template)
		if err != nil {
			return nil, mapError(err)
		}
		req.Template = &tpl
	case opts.TemplateFile != "":
		tpl, err := loadTemplateFile(ctx, opts.TemplateFile)
		if err != nil {
			return nil, mapError(err)
		}
		req.Template = tpl
	}

	resp, err := c.starter.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return c.GetTask(ctx, resp.TaskID)
}

func loadTemplateFile(ctx context.Context, path string) (*model.Template, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("could not resolve template path: %w", err)
	}

	repo := storageio.NewTemplateFileRepository(os.DirFS(filepath.Dir(abs)))
	return repo.GetTemplate(ctx, filepath.Base(abs))
}

// GetTask returns the current state of a task.
//
// Returns [ErrNotFound] if the task does not exist.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := c.registry.GetTask(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTask(*t)
	return &result, nil
}

// ListTasksOpts are the options to list tasks.
type ListTasksOpts struct {
	// Status only returns the tasks with this status.
	Status *TaskStatus
}

// ListTasks returns the tasks of the client sorted by start time.
// Pass nil opts to list all of them.
func (c *Client) ListTasks(ctx context.Context, opts *ListTasksOpts) ([]Task, error) {
	tasks, err := c.registry.Tasks(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	if opts != nil && opts.Status != nil {
		filtered := tasks[:0]
		for _, t := range tasks {
			if TaskStatus(t.Status) == *opts.Status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	return fromInternalTaskList(tasks), nil
}

// CancelTask marks a task as cancelled, the execution stops before its next step.
//
// Returns [ErrNotFound] if the task does not exist and [ErrTaskFinished] if it
// already finished.
func (c *Client) CancelTask(ctx context.Context, id string) (*Task, error) {
	if err := c.registry.CancelTask(ctx, id); err != nil {
		return nil, mapError(err)
	}

	return c.GetTask(ctx, id)
}

// RemoveTask forgets a task. A running task is not stopped, cancel it first.
func (c *Client) RemoveTask(ctx context.Context, id string) error {
	return mapError(c.registry.RemoveTask(ctx, id))
}

// WaitTaskOpts are the options to wait for a task.
type WaitTaskOpts struct {
	// OnLog is called once per task log entry, in order, while the task runs.
	OnLog func(LogEntry)
}

// WaitTask blocks until the task execution returns and returns the final task.
// Pass nil opts when the logs don't need to be followed.
//
// If the context is done before, the task keeps running and an error is returned.
func (c *Client) WaitTask(ctx context.Context, id string, opts *WaitTaskOpts) (*Task, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		if err := c.registry.WaitTask(waitCtx, id); err != nil {
			c.logger.Debugf("task %s wait ended: %s", id, err)
		}
	}()

	req := taskwait.Request{TaskID: id}
	if opts != nil && opts.OnLog != nil {
		req.OnLog = func(l model.LogEntry) { opts.OnLog(fromInternalLogEntry(l)) }
	}

	t, err := c.waiter.Run(waitCtx, req)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTask(*t)
	return &result, nil
}

// RunTask starts a task and waits for it to finish, see [Client.StartTask] and
// [Client.WaitTask].
func (c *Client) RunTask(ctx context.Context, opts StartTaskOpts, waitOpts *WaitTaskOpts) (*Task, error) {
	t, err := c.StartTask(ctx, opts)
	if err != nil {
		return nil, err
	}

	return c.WaitTask(ctx, t.ID, waitOpts)
}
