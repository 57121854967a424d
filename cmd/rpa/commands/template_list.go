package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/rpa/internal/app/templatelist"
)

type TemplateListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	platform string
	format   string
}

// NewTemplateListCommand returns the template list command.
func NewTemplateListCommand(rootCmd *RootCommand, templateCmd *kingpin.CmdClause) *TemplateListCommand {
	c := &TemplateListCommand{rootCmd: rootCmd}

	c.Cmd = templateCmd.Command("list", "List the catalog templates.")
	c.Cmd.Flag("platform", "Only templates of this platform.").StringVar(&c.platform)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c TemplateListCommand) Name() string { return c.Cmd.FullCommand() }

func (c TemplateListCommand) Run(ctx context.Context) error {
	repo, err := openCatalog(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := templatelist.NewService(templatelist.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	templates, err := svc.Run(ctx, templatelist.Request{PlatformFilter: c.platform})
	if err != nil {
		return fmt.Errorf("could not list templates: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd).PrintTemplateList(templates); err != nil {
		return fmt.Errorf("could not print templates: %w", err)
	}

	return nil
}
