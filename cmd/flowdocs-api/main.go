package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/flowdocs/flowdocs/pkg/cmd"
	"github.com/flowdocs/flowdocs/pkg/events"
	"github.com/flowdocs/flowdocs/pkg/log"
	"github.com/flowdocs/flowdocs/pkg/otelhelper"
	"github.com/flowdocs/flowdocs/pkg/ratelimit"
	"github.com/flowdocs/flowdocs/pkg/storage"
	"github.com/flowdocs/flowdocs/pkg/store"
	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 8000

func main() {
	command := &cli.Command{
		Name:                  "flowdocs-api",
		Usage:                 "Browse, search and manage the workflow document library",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for the workflow index",
				Value:   "sqlite://workflows.db",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "workflows-root",
				Usage:   "Directory holding the workflow JSON files, one category per subdirectory",
				Value:   "./workflows",
				Sources: cli.EnvVars("WORKFLOWS_ROOT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "admin-token",
				Usage:   "Shared token guarding administrative endpoints; empty disables them",
				Sources: cli.EnvVars("ADMIN_TOKEN"),
			},
			&cli.IntFlag{
				Name:    "rate-limit",
				Usage:   "Requests allowed per client IP per minute on sensitive endpoints",
				Value:   ratelimit.DefaultLimit,
				Sources: cli.EnvVars("RATE_LIMIT"),
			},
			&cli.StringFlag{
				Name:    "rate-limit-url",
				Usage:   "Redis URL for a shared rate limiter; empty uses the in-process limiter",
				Sources: cli.EnvVars("RATE_LIMIT_URL"),
			},
			&cli.StringFlag{
				Name:    "reindex-schedule",
				Usage:   "Cron spec for periodic reindexing; empty disables it",
				Sources: cli.EnvVars("REINDEX_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing workflow library API")

	root, err := storage.NewRoot(command.String("workflows-root"))
	if err != nil {
		return err
	}

	s, err := cmd.NewStore(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := s.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close workflow index", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	limiter, err := ratelimit.New(command.String("rate-limit-url"), ratelimit.Config{
		Limit: int(command.Int("rate-limit")),
	})
	if err != nil {
		return err
	}

	defer func() {
		if err := limiter.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close rate limiter", "error", err)
		}
	}()

	indexer := store.NewIndexer(s, root, logger, newTracer(ctx, logger))

	// React to uploads from other instances sharing the bus.
	eventBus.Handle(events.WorkflowUploadedEvent, func(ctx context.Context, event any) error {
		uploaded, ok := event.(*events.WorkflowUploaded)
		if !ok {
			return nil
		}

		logger.InfoContext(ctx, "Workflow uploaded, refreshing index", "filename", uploaded.Filename)

		_, err := indexer.ReindexAll(ctx, false)

		return err
	})

	err = eventBus.Subscribe(ctx)
	if err != nil {
		return err
	}

	// Index whatever is already on disk before serving.
	go func() {
		_, err := indexer.ReindexAll(ctx, false)
		if err != nil {
			logger.ErrorContext(ctx, "Initial index failed", "error", err)
		}
	}()

	scheduler := startScheduler(ctx, logger, command.String("reindex-schedule"), indexer, limiter)
	defer scheduler.Stop()

	api := NewAPI(
		logger,
		s,
		indexer,
		root,
		eventBus,
		limiter,
		command.String("admin-token"),
	)

	err = api.Start(int(command.Int("port")))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start API server", "error", err)
	}

	return nil
}

// newTracer only wires OTLP export when an endpoint is configured.
func newTracer(ctx context.Context, logger *slog.Logger) trace.Tracer {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return nil
	}

	tracer, err := otelhelper.NewTracer(ctx, "flowdocs-api")
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize tracer", "error", err)

		return nil
	}

	return tracer
}

func startScheduler(
	ctx context.Context,
	logger *slog.Logger,
	reindexSpec string,
	indexer *store.Indexer,
	limiter ratelimit.Limiter,
) *cron.Cron {
	scheduler := cron.New()

	if reindexSpec != "" {
		_, err := scheduler.AddFunc(reindexSpec, func() {
			_, err := indexer.ReindexAll(ctx, false)
			if err != nil {
				logger.ErrorContext(ctx, "Scheduled reindex failed", "error", err)
			}
		})
		if err != nil {
			logger.ErrorContext(ctx, "Invalid reindex schedule", "spec", reindexSpec, "error", err)
		}
	}

	if memory, ok := limiter.(*ratelimit.Memory); ok {
		_, err := scheduler.AddFunc("@every 5m", func() {
			dropped := memory.Sweep()
			if dropped > 0 {
				logger.DebugContext(ctx, "Swept stale rate limiter keys", "dropped", dropped)
			}
		})
		if err != nil {
			logger.ErrorContext(ctx, "Failed to schedule limiter sweep", "error", err)
		}
	}

	scheduler.Start()

	return scheduler
}
