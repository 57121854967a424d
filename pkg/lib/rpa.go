package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/rpa/internal/app/taskstart"
	"github.com/slok/rpa/internal/app/taskwait"
	"github.com/slok/rpa/internal/conventions"
	"github.com/slok/rpa/internal/engine"
	"github.com/slok/rpa/internal/gateway"
	"github.com/slok/rpa/internal/gateway/cdp"
	"github.com/slok/rpa/internal/gateway/fake"
	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/storage"
	"github.com/slok/rpa/internal/storage/memory"
	"github.com/slok/rpa/internal/storage/sqlite"
	"github.com/slok/rpa/internal/task"
)

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. At minimum, an empty
// Config{} will use ~/.rpa/rpa.db for the template catalog and launch real
// browsers through the Chrome DevTools Protocol.
type Config struct {
	// DBPath is the template catalog SQLite database path.
	// Default: <DataDir>/rpa.db.
	DBPath string

	// InMemoryCatalog keeps the template catalog in memory for the lifetime of
	// the client, no database is created and DBPath is ignored.
	InMemoryCatalog bool

	// DataDir is the base directory for rpa data.
	// Default: ~/.rpa.
	DataDir string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// Gateway selects the browser session gateway.
	// Default: [GatewayCDP].
	//
	// Set this to [GatewayFake] for testing templates without a browser.
	Gateway GatewayType

	// BrowserExecPath overrides the browser executable discovery.
	// Only used when Gateway is [GatewayCDP].
	BrowserExecPath string

	// LaunchTimeout is the max time waiting for a launched browser to be ready.
	// Default: 15s. Only used when Gateway is [GatewayCDP].
	LaunchTimeout time.Duration
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, conventions.DefaultDataDir)
	}

	if c.DBPath == "" {
		c.DBPath = conventions.DBPath(c.DataDir)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	if c.Gateway == "" {
		c.Gateway = GatewayCDP
	}

	return nil
}

// Client is the main SDK entry point to run automation templates programmatically.
//
// Tasks live in memory for the lifetime of the client, the template catalog is
// persisted in SQLite unless [Config.InMemoryCatalog] is set. Create a Client
// with [New] and release its resources with [Client.Close]. A Client is safe for
// concurrent use.
type Client struct {
	catalog  storage.TemplateRepository
	registry *task.Registry
	starter  *taskstart.Service
	waiter   *taskwait.Service
	logger   log.Logger

	closeCatalog func() error
	execCancel   context.CancelFunc
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done to stop the running tasks and
// release the database connection. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	gw, err := newGateway(cfg)
	if err != nil {
		return nil, mapError(err)
	}

	repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create task repository: %w", err)
	}

	var catalog storage.TemplateRepository = repo
	closeCatalog := func() error { return nil }
	if !cfg.InMemoryCatalog {
		db, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: cfg.DBPath,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create template repository: %w", err)
		}
		catalog = db
		closeCatalog = db.Close
	}

	eng, err := engine.NewEngine(engine.EngineConfig{
		Gateway:    gw,
		Repository: repo,
		Logger:     cfg.Logger,
	})
	if err != nil {
		closeCatalog()
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	// Executions are bound to the client, not to the New context.
	execCtx, execCancel := context.WithCancel(context.WithoutCancel(ctx))
	registry, err := task.NewRegistry(task.RegistryConfig{
		Runner:     eng,
		Repository: repo,
		Context:    execCtx,
		Logger:     cfg.Logger,
	})
	if err != nil {
		execCancel()
		closeCatalog()
		return nil, fmt.Errorf("could not create task registry: %w", err)
	}

	starter, err := taskstart.NewService(taskstart.ServiceConfig{
		Starter: registry,
		Catalog: catalog,
		Logger:  cfg.Logger,
	})
	if err != nil {
		execCancel()
		closeCatalog()
		return nil, fmt.Errorf("could not create task start service: %w", err)
	}

	waiter, err := taskwait.NewService(taskwait.ServiceConfig{
		Watcher: registry,
		Logger:  cfg.Logger,
	})
	if err != nil {
		execCancel()
		closeCatalog()
		return nil, fmt.Errorf("could not create task wait service: %w", err)
	}

	return &Client{
		catalog:      catalog,
		registry:     registry,
		starter:      starter,
		waiter:       waiter,
		logger:       cfg.Logger,
		closeCatalog: closeCatalog,
		execCancel:   execCancel,
	}, nil
}

// Close cancels the running tasks, waits for their executions to return and
// releases the database connection. After Close returns, the client must not be used.
func (c *Client) Close() error {
	ctx := context.Background()

	active, err := c.registry.ActiveTasks(ctx)
	if err != nil {
		c.logger.Warningf("could not list active tasks: %s", err)
	}
	for _, t := range active {
		if err := c.registry.CancelTask(ctx, t.ID); err != nil {
			c.logger.Warningf("could not cancel task %s: %s", t.ID, err)
		}
	}

	// In-flight steps are aborted instead of waited.
	c.execCancel()
	c.registry.Wait()

	return c.closeCatalog()
}

func newGateway(cfg Config) (gateway.Gateway, error) {
	switch cfg.Gateway {
	case GatewayCDP:
		return cdp.NewGateway(cdp.GatewayConfig{
			ExecPath:      cfg.BrowserExecPath,
			LaunchTimeout: cfg.LaunchTimeout,
			Logger:        cfg.Logger,
		})
	case GatewayFake:
		return fake.NewGateway(fake.GatewayConfig{
			AllSelectorsPresent: true,
			Logger:              cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported gateway type: %s: %w", cfg.Gateway, ErrNotValid)
	}
}
