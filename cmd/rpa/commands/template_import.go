package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/rpa/internal/app/templateimport"
	storageio "github.com/slok/rpa/internal/storage/io"
)

type TemplateImportCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	path    string
	replace bool
}

// NewTemplateImportCommand returns the template import command.
func NewTemplateImportCommand(rootCmd *RootCommand, templateCmd *kingpin.CmdClause) *TemplateImportCommand {
	c := &TemplateImportCommand{rootCmd: rootCmd}

	c.Cmd = templateCmd.Command("import", "Import a YAML or JSON template document into the catalog.")
	c.Cmd.Arg("file", "Template document path.").Required().StringVar(&c.path)
	c.Cmd.Flag("replace", "Replace the template when its ID is already in the catalog.").BoolVar(&c.replace)

	return c
}

func (c TemplateImportCommand) Name() string { return c.Cmd.FullCommand() }

func (c TemplateImportCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	abs, err := filepath.Abs(c.path)
	if err != nil {
		return fmt.Errorf("could not resolve template path: %w", err)
	}

	repo, err := openCatalog(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := templateimport.NewService(templateimport.ServiceConfig{
		Files:      storageio.NewTemplateFileRepository(os.DirFS(filepath.Dir(abs))),
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	tpl, err := svc.Run(ctx, templateimport.Request{
		Path:    filepath.Base(abs),
		Replace: c.replace,
	})
	if err != nil {
		return fmt.Errorf("could not import template: %w", err)
	}

	return newPrinter(formatTable, c.rootCmd).PrintMessage(fmt.Sprintf("Imported template %s (%d steps)", tpl.ID, len(tpl.Steps)))
}
