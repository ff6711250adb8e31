package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/flowdocs/flowdocs/pkg/models"
	"github.com/flowdocs/flowdocs/pkg/otelhelper"
	"github.com/flowdocs/flowdocs/pkg/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Indexer walks the workflow storage root and keeps the store's metadata rows
// in sync with the files on disk.
type Indexer struct {
	store  Store
	root   *storage.Root
	logger *slog.Logger
	tracer trace.Tracer
}

// NewIndexer creates an indexer over the given store and storage root. A nil
// tracer disables span creation.
func NewIndexer(store Store, root *storage.Root, logger *slog.Logger, tracer trace.Tracer) *Indexer {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	return &Indexer{
		store:  store,
		root:   root,
		logger: logger,
		tracer: tracer,
	}
}

// ReindexAll indexes every workflow file under the storage root. Files whose
// content hash matches the indexed row are skipped unless force is set, in
// which case the index is rebuilt from scratch. Rows for files that no longer
// exist are pruned.
func (i *Indexer) ReindexAll(ctx context.Context, force bool) (*ReindexResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, i.tracer, "store.reindex_all",
		attribute.Bool(otelhelper.ReindexForcedKey, force))
	defer span.End()

	if force {
		err := i.store.DeleteAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to clear index: %w", err)
		}
	}

	hashes, err := i.store.FileHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load indexed hashes: %w", err)
	}

	files, err := i.root.Files()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	result := &ReindexResult{}
	seen := make(map[string]bool, len(files))

	for _, file := range files {
		seen[file.Filename] = true

		data, err := os.ReadFile(file.Path)
		if err != nil {
			i.logger.WarnContext(ctx, "Failed to read workflow file",
				"filename", file.Filename, "error", err)

			result.Errors++

			continue
		}

		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])

		if !force && hashes[file.Filename] == hash {
			result.Skipped++

			continue
		}

		workflow, err := models.ParseWorkflow(data)
		if err != nil {
			i.logger.WarnContext(ctx, "Failed to parse workflow file",
				"filename", file.Filename, "error", err)

			result.Errors++

			continue
		}

		summary := models.Summarize(file.Filename, file.Category, workflow)
		summary.FileHash = hash

		err = i.store.Upsert(ctx, summary)
		if err != nil {
			i.logger.ErrorContext(ctx, "Failed to index workflow",
				"filename", file.Filename, "error", err)

			result.Errors++

			continue
		}

		result.Processed++
	}

	for filename := range hashes {
		if seen[filename] {
			continue
		}

		err := i.store.DeleteByFilename(ctx, filename)
		if err != nil && !IsWorkflowNotFound(err) {
			i.logger.WarnContext(ctx, "Failed to prune indexed workflow",
				"filename", filename, "error", err)

			result.Errors++
		}
	}

	i.logger.InfoContext(ctx, "Reindex finished",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"forced", force)

	return result, nil
}
