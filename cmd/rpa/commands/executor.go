package commands

import (
	"context"
	"fmt"

	"github.com/slok/rpa/internal/app/taskstart"
	"github.com/slok/rpa/internal/engine"
	"github.com/slok/rpa/internal/gateway"
	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/metrics"
	"github.com/slok/rpa/internal/storage"
	"github.com/slok/rpa/internal/storage/memory"
	"github.com/slok/rpa/internal/task"
)

// executor is the in-process execution stack: task store, engine, registry and
// the start service on top of them.
type executor struct {
	registry *task.Registry
	starter  *taskstart.Service
}

type executorConfig struct {
	// Context is the lifetime of the task executions.
	Context context.Context
	Gateway gateway.Gateway
	Metrics metrics.Recorder
	Catalog storage.TemplateGetter
	Files   storage.TemplateGetter
	Logger  log.Logger
}

func newExecutor(cfg executorConfig) (*executor, error) {
	repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create task repository: %w", err)
	}

	eng, err := engine.NewEngine(engine.EngineConfig{
		Gateway:    cfg.Gateway,
		Repository: repo,
		Metrics:    cfg.Metrics,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	registry, err := task.NewRegistry(task.RegistryConfig{
		Runner:     eng,
		Repository: repo,
		Context:    cfg.Context,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create task registry: %w", err)
	}

	starter, err := taskstart.NewService(taskstart.ServiceConfig{
		Starter: registry,
		Catalog: cfg.Catalog,
		Files:   cfg.Files,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create task start service: %w", err)
	}

	return &executor{
		registry: registry,
		starter:  starter,
	}, nil
}
