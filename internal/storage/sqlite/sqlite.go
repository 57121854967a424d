package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/rpa/internal/log"
	"github.com/slok/rpa/internal/model"
	storageio "github.com/slok/rpa/internal/storage/io"
	"github.com/slok/rpa/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Now    func() time.Time
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.TemplateRepository.
// Templates are stored as YAML documents next to a few indexed columns.
type Repository struct {
	db     *sql.DB
	now    func() time.Time
	logger log.Logger
}

// NewRepository opens the database and applies the schema migrations.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	version, err := migrator.Up(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite template catalog initialized at %s (schema v%d)", cfg.DBPath, version)

	return &Repository{db: db, now: cfg.Now, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// CreateTemplate stores a new template.
func (r *Repository) CreateTemplate(ctx context.Context, t model.Template) error {
	doc, err := storageio.EncodeTemplate(t)
	if err != nil {
		return err
	}

	now := r.now().Unix()
	query := `
		INSERT INTO templates (id, version, title, platform, steps, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, t.ID, t.Version, t.Metadata.Title, t.Metadata.Platform, len(t.Steps), string(doc), now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: templates.") {
			return fmt.Errorf("template %s: %w", t.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert template: %w", err)
	}

	r.logger.Debugf("Created template in repository: %s", t.ID)
	return nil
}

// UpdateTemplate replaces an existing template.
func (r *Repository) UpdateTemplate(ctx context.Context, t model.Template) error {
	doc, err := storageio.EncodeTemplate(t)
	if err != nil {
		return err
	}

	query := `
		UPDATE templates
		SET version = ?, title = ?, platform = ?, steps = ?, document = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, t.Version, t.Metadata.Title, t.Metadata.Platform, len(t.Steps), string(doc), r.now().Unix(), t.ID)
	if err != nil {
		return fmt.Errorf("could not update template: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("template %s: %w", t.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated template in repository: %s", t.ID)
	return nil
}

// GetTemplate retrieves a template by ID.
func (r *Repository) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM templates WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("template %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query template: %w", err)
	}

	t, err := storageio.DecodeTemplate([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("could not decode stored template %s: %w", id, err)
	}

	return &t, nil
}

// ListTemplates returns all templates sorted by ID.
func (r *Repository) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, document FROM templates ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("could not query templates: %w", err)
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}

		t, err := storageio.DecodeTemplate([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("could not decode stored template %s: %w", id, err)
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return templates, nil
}

// DeleteTemplate deletes a template.
func (r *Repository) DeleteTemplate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete template: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("template %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted template from repository: %s", id)
	return nil
}
