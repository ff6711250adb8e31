package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowdocs/flowdocs/pkg/store"
	"github.com/flowdocs/flowdocs/pkg/store/postgres"
	"github.com/flowdocs/flowdocs/pkg/store/sqlite"
)

// NewStore creates a workflow index backend based on the database URL scheme.
// Anything that is not postgres falls back to the embedded SQLite index.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (store.Store, error) {
	switch parseStoreProvider(databaseURL) {
	case "postgres":
		return postgres.NewStore(ctx, logger, databaseURL)
	default:
		return sqlite.NewStore(ctx, logger, databaseURL)
	}
}

func parseStoreProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "sqlite"
	}

	switch provider {
	case "postgres", "postgresql":
		return "postgres"
	default:
		return "sqlite"
	}
}
