package storage

import (
	"context"

	"github.com/slok/rpa/internal/model"
)

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name TaskRepository --structname MockTaskRepository
//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name TemplateRepository --structname MockTemplateRepository

// TaskRepository is the observable store of in flight and finished tasks.
type TaskRepository interface {
	CreateTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// ListTasks returns the tasks sorted by start time.
	ListTasks(ctx context.Context) ([]model.Task, error)
	// UpdateTask replaces the task with the result of mutate atomically.
	// Terminal tasks reject any status, progress, step, end time, session or log change with model.ErrTaskFinished.
	UpdateTask(ctx context.Context, id string, mutate func(t *model.Task) error) (*model.Task, error)
	// AppendTaskLog appends a log entry atomically, timestamps never go backwards.
	// Terminal tasks reject new entries with model.ErrTaskFinished.
	AppendTaskLog(ctx context.Context, id string, entry model.LogEntry) error
	DeleteTask(ctx context.Context, id string) error
	// Watch returns the store change events until the context is done.
	Watch(ctx context.Context) (<-chan model.TaskEvent, error)
}

// TemplateRepository is the interface for template catalog persistence.
type TemplateRepository interface {
	CreateTemplate(ctx context.Context, t model.Template) error
	UpdateTemplate(ctx context.Context, t model.Template) error
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	ListTemplates(ctx context.Context) ([]model.Template, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// TemplateGetter gets a single template, by ID or by path depending on the implementation.
type TemplateGetter interface {
	GetTemplate(ctx context.Context, ref string) (*model.Template, error)
}
