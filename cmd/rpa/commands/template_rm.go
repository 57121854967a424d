package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/rpa/internal/app/templateremove"
)

type TemplateRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id string
}

// NewTemplateRmCommand returns the template rm command.
func NewTemplateRmCommand(rootCmd *RootCommand, templateCmd *kingpin.CmdClause) *TemplateRmCommand {
	c := &TemplateRmCommand{rootCmd: rootCmd}

	c.Cmd = templateCmd.Command("rm", "Remove a template from the catalog.")
	c.Cmd.Arg("id", "Template ID.").Required().StringVar(&c.id)

	return c
}

func (c TemplateRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c TemplateRmCommand) Run(ctx context.Context) error {
	repo, err := openCatalog(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := templateremove.NewService(templateremove.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	tpl, err := svc.Run(ctx, templateremove.Request{ID: c.id})
	if err != nil {
		return fmt.Errorf("could not remove template: %w", err)
	}

	return newPrinter(formatTable, c.rootCmd).PrintMessage(fmt.Sprintf("Removed template %s", tpl.ID))
}
