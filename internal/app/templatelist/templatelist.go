package templatelist

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
	"github.com/slok/rpa/internal/storage"
)

// ServiceConfig is the configuration for the template list service.
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

// Service lists catalog templates with optional filtering.
type Service struct {
	repo   storage.TemplateRepository
	logger log.Logger
}

// NewService creates a new template list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the template list request parameters.
type Request struct {
	// PlatformFilter only keeps templates of this platform, case insensitive.
	PlatformFilter string
}

// Run lists the catalog templates.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Template, error) {
	templates, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list templates: %w", err)
	}

	if req.PlatformFilter != "" {
		filtered := make([]model.Template, 0, len(templates))
		for _, t := range templates {
			if strings.EqualFold(t.Metadata.Platform, req.PlatformFilter) {
				filtered = append(filtered, t)
			}
		}
		templates = filtered
	}

	s.logger.Debugf("found %d templates", len(templates))
	return templates, nil
}
