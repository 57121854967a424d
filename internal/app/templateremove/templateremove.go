package templateremove

import (
	"context"
	"fmt"

	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
	"github.com/slok/rpa/internal/storage"
)

// ServiceConfig is the configuration for the template remove service.
type ServiceConfig struct {
	Repository storage.TemplateRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service removes catalog templates.
type Service struct {
	repo   storage.TemplateRepository
	logger log.Logger
}

// NewService creates a new template remove service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the template remove request parameters.
type Request struct {
	ID string
}

// Run removes a template from the catalog and returns it.
func (s *Service) Run(ctx context.Context, req Request) (*model.Template, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("template id is required: %w", model.ErrNotValid)
	}

	tpl, err := s.repo.GetTemplate(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("could not get template: %w", err)
	}

	if err := s.repo.DeleteTemplate(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("could not delete template: %w", err)
	}

	s.logger.Infof("Template %s removed", req.ID)

	return tpl, nil
}
