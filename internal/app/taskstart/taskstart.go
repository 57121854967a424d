package taskstart

import (
	"context"
	"fmt"

	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
	"github.com/slok/rpa/internal/storage"
	"github.com/slok/rpa/internal/task"
)

// TaskStarter starts tasks in background.
type TaskStarter interface {
	StartTask(ctx context.Context, req task.StartRequest) (string, error)
}

// ServiceConfig is the configuration for the task start service.
type ServiceConfig struct {
	Starter TaskStarter
	// Catalog resolves templates by ID.
	Catalog storage.TemplateGetter
	// Files resolves templates by file path.
	Files  storage.TemplateGetter
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Starter == nil {
		return fmt.Errorf("task starter is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskStart"})

	return nil
}

// Service starts template executions.
type Service struct {
	starter TaskStarter
	catalog storage.TemplateGetter
	files   storage.TemplateGetter
	logger  log.Logger
}

// NewService creates a new task start service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		starter: cfg.Starter,
		catalog: cfg.Catalog,
		files:   cfg.Files,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the task start request parameters. Only one of Template,
// TemplatePath or TemplateID is used, in that order.
type Request struct {
	Template     *model.Template
	TemplatePath string
	TemplateID   string

	ProfilePath string
	ProfileName string
	Browser     string
	Variables   map[string]any
}

// Response is the started task information.
type Response struct {
	TaskID   string
	Template model.Template
}

// Run resolves the template and starts its execution.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	tpl, err := s.resolveTemplate(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Debugf("starting template %s on profile %s", tpl.ID, req.ProfilePath)

	id, err := s.starter.StartTask(ctx, task.StartRequest{
		Template:    *tpl,
		ProfilePath: req.ProfilePath,
		ProfileName: req.ProfileName,
		Browser:     req.Browser,
		Variables:   req.Variables,
	})
	if err != nil {
		return nil, fmt.Errorf("could not start task: %w", err)
	}

	return &Response{TaskID: id, Template: *tpl}, nil
}

func (s *Service) resolveTemplate(ctx context.Context, req Request) (*model.Template, error) {
	switch {
	case req.Template != nil:
		return req.Template, nil
	case req.TemplatePath != "":
		if s.files == nil {
			return nil, fmt.Errorf("template files are not supported: %w", model.ErrNotValid)
		}
		tpl, err := s.files.GetTemplate(ctx, req.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("could not load template: %w", err)
		}
		return tpl, nil
	case req.TemplateID != "":
		if s.catalog == nil {
			return nil, fmt.Errorf("template catalog is not available: %w", model.ErrNotValid)
		}
		tpl, err := s.catalog.GetTemplate(ctx, req.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("could not get template: %w", err)
		}
		return tpl, nil
	}

	return nil, fmt.Errorf("template is required: %w", model.ErrNotValid)
}
