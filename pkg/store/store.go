// Package store provides the searchable workflow metadata index.
package store

import (
	"context"
	"time"

	"github.com/flowdocs/flowdocs/pkg/models"
)

// SearchOptions narrows a catalog search. Zero values mean "no filter".
type SearchOptions struct {
	Query      string
	Trigger    string
	Complexity string
	Category   string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// SearchResult is one page of summaries plus the unpaginated match count.
type SearchResult struct {
	Workflows []*models.Summary `json:"workflows"`
	Total     int               `json:"total"`
}

// Stats aggregates the indexed catalog.
type Stats struct {
	Total              int            `json:"total"`
	Active             int            `json:"active"`
	Inactive           int            `json:"inactive"`
	Triggers           map[string]int `json:"triggers"`
	Complexity         map[string]int `json:"complexity"`
	TotalNodes         int            `json:"total_nodes"`
	UniqueIntegrations int            `json:"unique_integrations"`
	LastIndexed        time.Time      `json:"last_indexed"`
}

// ReindexResult reports the outcome of a full index pass.
type ReindexResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

type Store interface {
	FindByFilename(ctx context.Context, filename string) (*models.Summary, error)
	Search(ctx context.Context, opts SearchOptions) (*SearchResult, error)
	Stats(ctx context.Context) (*Stats, error)
	Upsert(ctx context.Context, summary *models.Summary) error
	DeleteByFilename(ctx context.Context, filename string) error
	DeleteAll(ctx context.Context) error

	// FileHashes returns filename to content-hash for every indexed row,
	// letting the indexer skip unchanged files.
	FileHashes(ctx context.Context) (map[string]string, error)

	Categories(ctx context.Context) ([]string, error)
	CategoryMappings(ctx context.Context) (map[string]string, error)
	Integrations(ctx context.Context) ([]string, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
