package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/rpa/internal/storage/sqlite"
)

// NewTemplateCommand returns the template parent command.
func NewTemplateCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("template", "Manage the template catalog.")
}

func openCatalog(ctx context.Context, root *RootCommand) (*sqlite.Repository, error) {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: root.DBPath,
		Logger: root.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create template repository: %w", err)
	}

	return repo, nil
}
