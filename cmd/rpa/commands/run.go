package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/rpa/internal/app/taskstart"
	"github.com/slok/rpa/internal/app/taskwait"
	"github.com/slok/rpa/internal/model"
	"github.com/slok/rpa/internal/storage"
	storageio "github.com/slok/rpa/internal/storage/io"
	"github.com/slok/rpa/internal/storage/sqlite"
	"github.com/slok/rpa/internal/task"
	"github.com/slok/rpa/internal/utils/vars"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	gateway *gatewayFlags

	template    string
	profilePath string
	profileName string
	browser     string
	varSpecs    []string
	format      string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a template on a browser profile and follow its logs.")
	c.Cmd.Arg("template", "Template file path or catalog template ID.").Required().StringVar(&c.template)
	c.Cmd.Flag("profile-path", "Browser profile data directory.").Required().StringVar(&c.profilePath)
	c.Cmd.Flag("profile-name", "Browser profile display name.").StringVar(&c.profileName)
	c.Cmd.Flag("browser", "Browser to launch (chrome, chromium, brave, edge).").Default(task.DefaultBrowser).StringVar(&c.browser)
	c.Cmd.Flag("var", "Template variable as KEY=VALUE, a bare KEY is read from RPA_VAR_KEY (repeatable).").Short('v').StringsVar(&c.varSpecs)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.gateway = registerGatewayFlags(c.Cmd)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	variables, err := vars.ParseSpecs(c.varSpecs)
	if err != nil {
		return fmt.Errorf("invalid variables: %w", err)
	}

	gw, err := newGateway(*c.gateway, logger)
	if err != nil {
		return err
	}

	// A template reference is a file when it exists on disk, otherwise a catalog ID.
	req := taskstart.Request{
		ProfilePath: c.profilePath,
		ProfileName: c.profileName,
		Browser:     c.browser,
		Variables:   variables,
	}
	var catalog, files storage.TemplateGetter
	if info, err := os.Stat(c.template); err == nil && !info.IsDir() {
		abs, err := filepath.Abs(c.template)
		if err != nil {
			return fmt.Errorf("could not resolve template path: %w", err)
		}
		files = storageio.NewTemplateFileRepository(os.DirFS(filepath.Dir(abs)))
		req.TemplatePath = filepath.Base(abs)
	} else {
		repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: c.rootCmd.DBPath,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create template repository: %w", err)
		}
		defer repo.Close()
		catalog = repo
		req.TemplateID = c.template
	}

	// Executions outlive the command context so a termination signal cancels
	// the task cooperatively instead of aborting it.
	execCtx, execCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer execCancel()

	exec, err := newExecutor(executorConfig{
		Context: execCtx,
		Gateway: gw,
		Catalog: catalog,
		Files:   files,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	waiter, err := taskwait.NewService(taskwait.ServiceConfig{
		Watcher: exec.registry,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task wait service: %w", err)
	}

	resp, err := exec.starter.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("could not start task: %w", err)
	}
	logger.Infof("Task %s started with template %s", resp.TaskID, resp.Template.ID)

	// The wait ends once the execution goroutine is gone, the final snapshot has every log.
	waitCtx, waitCancel := context.WithCancel(execCtx)
	defer waitCancel()
	finished := make(chan struct{})
	go func() {
		if err := exec.registry.WaitTask(execCtx, resp.TaskID); err != nil {
			logger.Warningf("could not wait for task execution: %s", err)
		}
		close(finished)
		waitCancel()
	}()
	go func() {
		select {
		case <-finished:
		case <-ctx.Done():
			logger.Warningf("Cancelling task %s", resp.TaskID)
			err := exec.registry.CancelTask(execCtx, resp.TaskID)
			if err != nil && !errors.Is(err, model.ErrTaskFinished) {
				logger.Errorf("could not cancel task: %s", err)
			}
		}
	}()

	p := newPrinter(c.format, c.rootCmd)
	t, err := waiter.Run(waitCtx, taskwait.Request{
		TaskID: resp.TaskID,
		OnLog: func(entry model.LogEntry) {
			if err := p.PrintLog(entry); err != nil {
				logger.Warningf("could not print log: %s", err)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("could not wait for task: %w", err)
	}

	if err := p.PrintTask(*t); err != nil {
		return fmt.Errorf("could not print task: %w", err)
	}

	if t.Status == model.TaskStatusFailed {
		return fmt.Errorf("task %s failed", t.ID)
	}

	return nil
}
