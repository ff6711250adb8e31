package sqlbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/flowdocs/flowdocs/pkg/models"
	"github.com/flowdocs/flowdocs/pkg/store"
)

// Bind renders the placeholder for the nth query parameter, letting the
// repository serve both "?" and "$n" dialects.
type Bind func(n int) string

const summaryColumns = `
			id
		  , filename
		  , name
		  , active
		  , description
		  , trigger_type
		  , complexity
		  , node_count
		  , integrations
		  , tags
		  , category
		  , file_hash
		  , created_at
		  , updated_at`

// Repository implements the workflow summary queries shared by the SQL
// backends.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
	bind   Bind
}

// NewRepository creates a new summary repository.
func NewRepository(db *sql.DB, logger *slog.Logger, bind Bind) *Repository {
	return &Repository{db: db, logger: logger, bind: bind}
}

// FindByFilename returns the indexed summary for a filename.
func (r *Repository) FindByFilename(ctx context.Context, filename string) (*models.Summary, error) {
	query := `
		SELECT` + summaryColumns + `
		FROM workflow_summaries
		WHERE filename = ` + r.bind(1)

	row := r.db.QueryRowContext(ctx, query, filename)

	summary, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow summary: %w", err)
	}

	return summary, nil
}

// Search returns the summaries matching the given filters plus the
// unpaginated match count.
func (r *Repository) Search(ctx context.Context, opts store.SearchOptions) (*store.SearchResult, error) {
	where, args := r.searchFilters(opts)

	var total int

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflow_summaries"+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	query := "SELECT" + summaryColumns + "\n\t\tFROM workflow_summaries" + where +
		"\n\t\tORDER BY name, filename"

	if opts.Limit > 0 {
		query += fmt.Sprintf("\n\t\tLIMIT %s OFFSET %s", r.bind(len(args)+1), r.bind(len(args)+2))
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer r.closeRows(ctx, rows)

	summaries := make([]*models.Summary, 0)

	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow summary: %w", err)
		}

		summaries = append(summaries, summary)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return &store.SearchResult{Workflows: summaries, Total: total}, nil
}

func (r *Repository) searchFilters(opts store.SearchOptions) (string, []any) {
	conditions := make([]string, 0, 5)
	args := make([]any, 0, 6)

	next := func() string {
		return r.bind(len(args))
	}

	if opts.Query != "" {
		pattern := "%" + strings.ToLower(opts.Query) + "%"
		args = append(args, pattern, pattern)
		conditions = append(conditions,
			fmt.Sprintf("(LOWER(name) LIKE %s OR LOWER(description) LIKE %s)",
				r.bind(len(args)-1), r.bind(len(args))))
	}

	if opts.Trigger != "" {
		args = append(args, opts.Trigger)
		conditions = append(conditions, "trigger_type = "+next())
	}

	if opts.Complexity != "" {
		args = append(args, opts.Complexity)
		conditions = append(conditions, "complexity = "+next())
	}

	if opts.Category != "" {
		args = append(args, opts.Category)
		conditions = append(conditions, "category = "+next())
	}

	if opts.ActiveOnly {
		args = append(args, true)
		conditions = append(conditions, "active = "+next())
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "\n\t\tWHERE " + strings.Join(conditions, " AND "), args
}

// Stats aggregates the indexed catalog.
func (r *Repository) Stats(ctx context.Context) (*store.Stats, error) {
	stats := &store.Stats{
		Triggers:   make(map[string]int),
		Complexity: make(map[string]int),
	}

	query := `
		SELECT
			COUNT(*)
		  , COALESCE(SUM(CASE WHEN active THEN 1 ELSE 0 END), 0)
		  , COALESCE(SUM(node_count), 0)
		FROM workflow_summaries
	`

	err := r.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.Active, &stats.TotalNodes)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate workflows: %w", err)
	}

	stats.Inactive = stats.Total - stats.Active

	err = r.groupCount(ctx, "trigger_type", stats.Triggers)
	if err != nil {
		return nil, err
	}

	err = r.groupCount(ctx, "complexity", stats.Complexity)
	if err != nil {
		return nil, err
	}

	integrations, err := r.Integrations(ctx)
	if err != nil {
		return nil, err
	}

	stats.UniqueIntegrations = len(integrations)

	var lastIndexed time.Time

	err = r.db.QueryRowContext(ctx,
		"SELECT updated_at FROM workflow_summaries ORDER BY updated_at DESC LIMIT 1").
		Scan(&lastIndexed)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query last indexed time: %w", err)
	}

	stats.LastIndexed = lastIndexed

	return stats, nil
}

func (r *Repository) groupCount(ctx context.Context, column string, into map[string]int) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM workflow_summaries GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("failed to group workflows by %s: %w", column, err)
	}

	defer r.closeRows(ctx, rows)

	for rows.Next() {
		var (
			key   string
			count int
		)

		err = rows.Scan(&key, &count)
		if err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}

		into[key] = count
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating %s counts: %w", column, err)
	}

	return nil
}

// Upsert inserts or replaces the summary row keyed by filename. The original
// created_at survives updates.
func (r *Repository) Upsert(ctx context.Context, summary *models.Summary) error {
	integrations, err := json.Marshal(summary.Integrations)
	if err != nil {
		return fmt.Errorf("failed to marshal integrations: %w", err)
	}

	tags, err := json.Marshal(summary.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	now := time.Now().UTC()

	placeholders := make([]string, 13)
	for n := range placeholders {
		placeholders[n] = r.bind(n + 1)
	}

	query := `
		INSERT INTO workflow_summaries (
			filename, name, active, description, trigger_type, complexity,
			node_count, integrations, tags, category, file_hash, created_at, updated_at
		) VALUES (` + strings.Join(placeholders, ", ") + `)
		ON CONFLICT (filename) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			description = excluded.description,
			trigger_type = excluded.trigger_type,
			complexity = excluded.complexity,
			node_count = excluded.node_count,
			integrations = excluded.integrations,
			tags = excluded.tags,
			category = excluded.category,
			file_hash = excluded.file_hash,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		summary.Filename,
		summary.Name,
		summary.Active,
		summary.Description,
		summary.TriggerType,
		summary.Complexity,
		summary.NodeCount,
		string(integrations),
		string(tags),
		summary.Category,
		summary.FileHash,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert workflow summary: %w", err)
	}

	return nil
}

// DeleteByFilename removes the summary row for a filename.
func (r *Repository) DeleteByFilename(ctx context.Context, filename string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM workflow_summaries WHERE filename = "+r.bind(1), filename)
	if err != nil {
		return fmt.Errorf("failed to delete workflow summary: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}

	if affected == 0 {
		return store.ErrWorkflowNotFound
	}

	return nil
}

// DeleteAll clears the index.
func (r *Repository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflow_summaries")
	if err != nil {
		return fmt.Errorf("failed to clear workflow summaries: %w", err)
	}

	return nil
}

// FileHashes returns filename to content-hash for every indexed row.
func (r *Repository) FileHashes(ctx context.Context) (map[string]string, error) {
	return r.stringPairs(ctx, "SELECT filename, file_hash FROM workflow_summaries")
}

// Categories returns the distinct indexed categories in sorted order.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT category FROM workflow_summaries ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}

	defer r.closeRows(ctx, rows)

	categories := make([]string, 0)

	for rows.Next() {
		var category string

		err = rows.Scan(&category)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}

		categories = append(categories, category)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// CategoryMappings returns filename to category for every indexed row.
func (r *Repository) CategoryMappings(ctx context.Context) (map[string]string, error) {
	return r.stringPairs(ctx, "SELECT filename, category FROM workflow_summaries")
}

// Integrations returns the distinct integrations across the whole index in
// sorted order.
func (r *Repository) Integrations(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT integrations FROM workflow_summaries")
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations: %w", err)
	}

	defer r.closeRows(ctx, rows)

	distinct := make(map[string]bool)

	for rows.Next() {
		var raw string

		err = rows.Scan(&raw)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integrations: %w", err)
		}

		var integrations []string

		err = json.Unmarshal([]byte(raw), &integrations)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal integrations: %w", err)
		}

		for _, integration := range integrations {
			distinct[integration] = true
		}
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating integrations: %w", err)
	}

	result := make([]string, 0, len(distinct))
	for integration := range distinct {
		result = append(result, integration)
	}

	sort.Strings(result)

	return result, nil
}

func (r *Repository) stringPairs(ctx context.Context, query string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary pairs: %w", err)
	}

	defer r.closeRows(ctx, rows)

	pairs := make(map[string]string)

	for rows.Next() {
		var key, value string

		err = rows.Scan(&key, &value)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary pair: %w", err)
		}

		pairs[key] = value
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating summary pairs: %w", err)
	}

	return pairs, nil
}

func (r *Repository) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (*models.Summary, error) {
	var (
		summary      models.Summary
		integrations string
		tags         string
	)

	err := row.Scan(
		&summary.ID,
		&summary.Filename,
		&summary.Name,
		&summary.Active,
		&summary.Description,
		&summary.TriggerType,
		&summary.Complexity,
		&summary.NodeCount,
		&integrations,
		&tags,
		&summary.Category,
		&summary.FileHash,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal([]byte(integrations), &summary.Integrations)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal integrations: %w", err)
	}

	err = json.Unmarshal([]byte(tags), &summary.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	return &summary, nil
}
