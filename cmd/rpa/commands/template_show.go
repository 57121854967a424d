package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type TemplateShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id     string
	format string
}

// NewTemplateShowCommand returns the template show command.
func NewTemplateShowCommand(rootCmd *RootCommand, templateCmd *kingpin.CmdClause) *TemplateShowCommand {
	c := &TemplateShowCommand{rootCmd: rootCmd}

	c.Cmd = templateCmd.Command("show", "Show a catalog template with its steps and variables.")
	c.Cmd.Arg("id", "Template ID.").Required().StringVar(&c.id)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c TemplateShowCommand) Name() string { return c.Cmd.FullCommand() }

func (c TemplateShowCommand) Run(ctx context.Context) error {
	repo, err := openCatalog(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	tpl, err := repo.GetTemplate(ctx, c.id)
	if err != nil {
		return fmt.Errorf("could not get template: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd).PrintTemplate(*tpl); err != nil {
		return fmt.Errorf("could not print template: %w", err)
	}

	return nil
}
