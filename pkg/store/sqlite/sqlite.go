// Package sqlite provides the embedded SQLite workflow index.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flowdocs/flowdocs/pkg/models"
	"github.com/flowdocs/flowdocs/pkg/store"
	"github.com/flowdocs/flowdocs/pkg/store/sqlbase"
	_ "modernc.org/sqlite"
)

// Store implements the workflow index on an embedded SQLite database.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	summary *sqlbase.Repository
}

// NewStore opens (or creates) the SQLite database behind a sqlite:// URL and
// runs migrations.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	path := strings.TrimPrefix(databaseURL, "sqlite://")
	if path == "" {
		path = "workflows.db"
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// modernc.org/sqlite connections do not tolerate concurrent writers.
	database.SetMaxOpenConns(1)

	_, err = database.ExecContext(ctx, "PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;")
	if err != nil {
		return nil, fmt.Errorf("failed to configure SQLite database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		db:      database,
		logger:  logger,
		summary: sqlbase.NewRepository(database, logger, func(int) string { return "?" }),
	}, nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_summaries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				filename TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				active BOOLEAN NOT NULL DEFAULT FALSE,
				description TEXT NOT NULL DEFAULT '',
				trigger_type TEXT NOT NULL,
				complexity TEXT NOT NULL,
				node_count INTEGER NOT NULL DEFAULT 0,
				integrations TEXT NOT NULL DEFAULT '[]',
				tags TEXT NOT NULL DEFAULT '[]',
				category TEXT NOT NULL,
				file_hash TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_summaries_trigger_type ON workflow_summaries (trigger_type);
			CREATE INDEX IF NOT EXISTS idx_summaries_complexity ON workflow_summaries (complexity);
			CREATE INDEX IF NOT EXISTS idx_summaries_category ON workflow_summaries (category);
		`,
	}
}

func (s *Store) FindByFilename(ctx context.Context, filename string) (*models.Summary, error) {
	return s.summary.FindByFilename(ctx, filename)
}

func (s *Store) Search(ctx context.Context, opts store.SearchOptions) (*store.SearchResult, error) {
	return s.summary.Search(ctx, opts)
}

func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	return s.summary.Stats(ctx)
}

func (s *Store) Upsert(ctx context.Context, summary *models.Summary) error {
	return s.summary.Upsert(ctx, summary)
}

func (s *Store) DeleteByFilename(ctx context.Context, filename string) error {
	return s.summary.DeleteByFilename(ctx, filename)
}

func (s *Store) DeleteAll(ctx context.Context) error {
	return s.summary.DeleteAll(ctx)
}

func (s *Store) FileHashes(ctx context.Context) (map[string]string, error) {
	return s.summary.FileHashes(ctx)
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	return s.summary.Categories(ctx)
}

func (s *Store) CategoryMappings(ctx context.Context) (map[string]string, error) {
	return s.summary.CategoryMappings(ctx)
}

func (s *Store) Integrations(ctx context.Context) ([]string, error) {
	return s.summary.Integrations(ctx)
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close(ctx context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
