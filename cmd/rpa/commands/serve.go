package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slok/rpa/internal/api"
	"github.com/slok/rpa/internal/conventions"
	metricsprometheus "github.com/slok/rpa/internal/metrics/prometheus"
	"github.com/slok/rpa/internal/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	gateway *gatewayFlags

	listenAddr string
	apiKey     string
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Serve the local automation API.")
	c.Cmd.Flag("listen", "Address the API listens on.").Default(conventions.DefaultListenAddress).StringVar(&c.listenAddr)
	c.Cmd.Flag("api-key", "Bearer token required by the API, empty disables the authentication.").Envar(conventions.APIKeyEnvVar).StringVar(&c.apiKey)
	c.gateway = registerGatewayFlags(c.Cmd)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	if c.apiKey == "" {
		logger.Warningf("API key not set, the API is not authenticated")
	}

	gw, err := newGateway(*c.gateway, logger)
	if err != nil {
		return err
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create template repository: %w", err)
	}
	defer repo.Close()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	execCtx, execCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer execCancel()

	exec, err := newExecutor(executorConfig{
		Context: execCtx,
		Gateway: gw,
		Metrics: metricsprometheus.NewRecorder(promReg),
		Catalog: repo,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	handler, err := api.NewHandler(api.HandlerConfig{
		Registry:       exec.registry,
		Starter:        exec.starter,
		APIKey:         c.apiKey,
		MetricsHandler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		Version:        c.rootCmd.Version,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create API handler: %w", err)
	}

	var g run.Group

	// HTTP API.
	{
		ln, err := net.Listen("tcp", c.listenAddr)
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", c.listenAddr, err)
		}
		server := &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Add(
			func() error {
				logger.Infof("API listening on %s", ln.Addr())
				err := server.Serve(ln)
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			},
			func(_ error) {
				sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				if err := server.Shutdown(sctx); err != nil {
					logger.Errorf("could not shutdown API server: %s", err)
				}
			},
		)
	}

	// Command context.
	{
		g.Add(
			func() error {
				<-ctx.Done()
				return nil
			},
			func(_ error) {},
		)
	}

	if err := g.Run(); err != nil {
		return err
	}

	// Stop the running tasks at their next step boundary.
	active, err := exec.registry.ActiveTasks(execCtx)
	if err != nil {
		return fmt.Errorf("could not list active tasks: %w", err)
	}
	for _, t := range active {
		logger.Infof("Cancelling task %s", t.ID)
		if err := exec.registry.CancelTask(execCtx, t.ID); err != nil {
			logger.Warningf("could not cancel task %s: %s", t.ID, err)
		}
	}
	exec.registry.Wait()

	return nil
}
