package templateimport

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
	"github.com/slok/rpa/internal/storage"
)

// ServiceConfig is the configuration for the template import service.
type ServiceConfig struct {
	Files      storage.TemplateGetter
	Repository storage.TemplateRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Files == nil {
		return fmt.Errorf("template files getter is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TemplateImport"})

	return nil
}

// Service imports template documents into the catalog.
type Service struct {
	files  storage.TemplateGetter
	repo   storage.TemplateRepository
	logger log.Logger
}

// NewService creates a new template import service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		files:  cfg.Files,
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the template import request parameters.
type Request struct {
	Path string
	// Replace overwrites a template with the same ID.
	Replace bool
}

// Run loads the template document and stores it in the catalog.
func (s *Service) Run(ctx context.Context, req Request) (*model.Template, error) {
	if req.Path == "" {
		return nil, fmt.Errorf("template path is required: %w", model.ErrNotValid)
	}

	tpl, err := s.files.GetTemplate(ctx, req.Path)
	if err != nil {
		return nil, fmt.Errorf("could not load template: %w", err)
	}

	err = s.repo.CreateTemplate(ctx, *tpl)
	if errors.Is(err, model.ErrAlreadyExists) && req.Replace {
		s.logger.Debugf("replacing template %s", tpl.ID)
		err = s.repo.UpdateTemplate(ctx, *tpl)
	}
	if err != nil {
		return nil, fmt.Errorf("could not store template: %w", err)
	}

	s.logger.Infof("Template %s imported", tpl.ID)

	return tpl, nil
}
