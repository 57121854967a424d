package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
	"github.com/slok/rpa/internal/storage/sqlite"
	"github.com/slok/rpa/internal/storage/sqlite/migrations"
)

func templateFixture(id, title string) model.Template {
	return model.Template{
		ID:      id,
		Version: "1.0.0",
		Metadata: model.TemplateMetadata{
			Title:    title,
			Platform: "Other",
			Tags:     []string{"a", "b"},
		},
		Steps: []model.Step{
			{Order: 1, Action: model.StepActionNavigate, URL: "https://example.com/{{path}}", WaitForSelector: "body"},
			{Order: 2, Action: model.StepActionClick, Selector: "#go", FallbackSelectors: []string{".go"}, HumanDelay: &model.DelayRange{Min: time.Second, Max: 2 * time.Second}},
			{Order: 3, Action: model.StepActionWait, Wait: 1500 * time.Millisecond},
		},
		Variables: []model.Variable{
			{Name: "path", Type: model.VariableTypeString, Required: true},
			{Name: "n", Type: model.VariableTypeNumber, Default: float64(3)},
			{Name: "b", Type: model.VariableTypeBoolean, Default: true},
		},
	}
}

func newRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{
		DBPath: filepath.Join(t.TempDir(), "nested", "test.db"),
		Logger: log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	tpl := templateFixture("tpl-1", "Template 1")
	require.NoError(t, repo.CreateTemplate(ctx, tpl))

	got, err := repo.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, tpl, *got)

	tpl2 := templateFixture("tpl-0", "Template 0")
	require.NoError(t, repo.CreateTemplate(ctx, tpl2))

	all, err := repo.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "tpl-0", all[0].ID)
	assert.Equal(t, "tpl-1", all[1].ID)

	tpl.Version = "2.0.0"
	tpl.Steps = tpl.Steps[:1]
	require.NoError(t, repo.UpdateTemplate(ctx, tpl))
	got, err = repo.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", got.Version)
	assert.Len(t, got.Steps, 1)

	require.NoError(t, repo.DeleteTemplate(ctx, "tpl-1"))
	_, err = repo.GetTemplate(ctx, "tpl-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRepositoryErrors(t *testing.T) {
	tests := map[string]struct {
		actions func(ctx context.Context, repo *sqlite.Repository) error
		expErr  error
	}{
		"Creating a duplicate template should fail": {
			actions: func(ctx context.Context, repo *sqlite.Repository) error {
				if err := repo.CreateTemplate(ctx, templateFixture("a", "A")); err != nil {
					return err
				}
				return repo.CreateTemplate(ctx, templateFixture("a", "A"))
			},
			expErr: model.ErrAlreadyExists,
		},

		"Getting a missing template should fail": {
			actions: func(ctx context.Context, repo *sqlite.Repository) error {
				_, err := repo.GetTemplate(ctx, "missing")
				return err
			},
			expErr: model.ErrNotFound,
		},

		"Updating a missing template should fail": {
			actions: func(ctx context.Context, repo *sqlite.Repository) error {
				return repo.UpdateTemplate(ctx, templateFixture("missing", "M"))
			},
			expErr: model.ErrNotFound,
		},

		"Deleting a missing template should fail": {
			actions: func(ctx context.Context, repo *sqlite.Repository) error {
				return repo.DeleteTemplate(ctx, "missing")
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.actions(context.Background(), newRepo(t))
			assert.ErrorIs(t, err, test.expErr)
		})
	}
}

func TestRepositoryPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: dbPath})
	require.NoError(t, err)
	require.NoError(t, repo.CreateTemplate(ctx, templateFixture("a", "A")))
	require.NoError(t, repo.Close())

	repo, err = sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: dbPath})
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.GetTemplate(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Metadata.Title)
}

func TestMigratorUpDown(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(err)
	defer db.Close()

	m, err := migrations.NewMigrator(db, nil)
	require.NoError(err)

	version, err := m.Up(ctx)
	require.NoError(err)
	assert.Equal(t, uint(1), version)

	// Idempotent.
	version, err = m.Up(ctx)
	require.NoError(err)
	assert.Equal(t, uint(1), version)

	require.NoError(m.Down(ctx))
	_, err = db.ExecContext(ctx, `SELECT id FROM templates`)
	assert.Error(t, err)
}

func TestNewRepositoryRequiresPath(t *testing.T) {
	_, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{})
	assert.Error(t, err)
}
