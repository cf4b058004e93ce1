package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	pubsubclient "cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regwatch/ecfr-ingest/internal/archive"
	archivegcs "github.com/regwatch/ecfr-ingest/internal/archive/gcs"
	archivemem "github.com/regwatch/ecfr-ingest/internal/archive/memory"
	"github.com/regwatch/ecfr-ingest/internal/clock/system"
	"github.com/regwatch/ecfr-ingest/internal/config"
	"github.com/regwatch/ecfr-ingest/internal/ecfr"
	"github.com/regwatch/ecfr-ingest/internal/logging"
	"github.com/regwatch/ecfr-ingest/internal/notify"
	notifymem "github.com/regwatch/ecfr-ingest/internal/notify/memory"
	notifypubsub "github.com/regwatch/ecfr-ingest/internal/notify/pubsub"
	"github.com/regwatch/ecfr-ingest/internal/pipeline"
	"github.com/regwatch/ecfr-ingest/internal/scoring"
	"github.com/regwatch/ecfr-ingest/internal/snapshot"
	snapshotmem "github.com/regwatch/ecfr-ingest/internal/snapshot/memory"
	snapshotpg "github.com/regwatch/ecfr-ingest/internal/snapshot/postgres"
)

// newIngestCmd creates and configures the 'ingest' subcommand, which runs
// the full fetch/score/persist pipeline exactly once.
func newIngestCmd() *cobra.Command {
	var (
		maxAgencies int
		concurrency int
		asOfDate    string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Runs one ingestion pass against the eCFR API",
		Long: `Fetches the agency directory and every referenced CFR title, computes
per-agency metrics, and appends one immutable snapshot batch to the store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if maxAgencies > 0 {
				cfg.Ingest.MaxAgencies = maxAgencies
			}
			if concurrency > 0 {
				cfg.Ingest.Concurrency = concurrency
			}
			if asOfDate != "" {
				cfg.Ingest.AsOfDate = asOfDate
			}
			return runIngest(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&maxAgencies, "max-agencies", 0, "limit the number of agencies ingested")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "bounded title fetch concurrency")
	cmd.Flags().StringVar(&asOfDate, "as-of", "", "fetch titles as of this date (YYYY-MM-DD)")

	return cmd
}

func runIngest(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.L

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, err := buildArchiveSink(ctx, cfg, logger)
	if err != nil {
		return err
	}

	publisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}

	spacing, err := cfg.RequestSpacing()
	if err != nil {
		return err
	}
	client := ecfr.NewClient(
		ecfr.ClientConfig{
			BaseURL:        cfg.ECFR.BaseURL,
			UserAgent:      cfg.ECFR.UserAgent,
			Timeout:        cfg.HTTPTimeout(),
			RequestSpacing: spacing,
			MaxInFlight:    cfg.Ingest.Concurrency,
		},
		ecfr.NewRetryPolicy(
			cfg.ECFR.MaxRetries,
			time.Duration(cfg.ECFR.BackoffInitialMs)*time.Millisecond,
			time.Duration(cfg.ECFR.BackoffMaxMs)*time.Millisecond,
		),
		logger,
	)

	engine, err := scoring.NewEngine(scoring.DefaultLexicon())
	if err != nil {
		return fmt.Errorf("build scoring engine: %w", err)
	}

	run := pipeline.NewRun(
		pipeline.Config{
			MaxAgencies:   cfg.Ingest.MaxAgencies,
			Concurrency:   cfg.Ingest.Concurrency,
			AsOfDate:      cfg.Ingest.AsOfDate,
			ArchivePrefix: cfg.Archive.Prefix,
			NotifyTopic:   cfg.Notify.Topic,
		},
		client,
		store,
		engine,
		sink,
		publisher,
		system.New(),
		logger,
	)

	result, err := run.Execute(ctx)
	if err != nil {
		return fmt.Errorf("ingestion run: %w", err)
	}

	logger.Info("ingestion complete",
		zap.String("run_id", result.RunID),
		zap.Time("run_at", result.RunAt),
		zap.Int("agencies", result.Agencies),
		zap.Int("partial_agencies", result.PartialAgencies),
	)
	return nil
}

// buildStore selects the snapshot store. Without a DSN an in-memory store is
// used, which only makes sense for dry runs.
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (snapshot.Store, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn not set; using in-memory snapshot store (nothing outlives this process)")
		return snapshotmem.NewStore(), func() {}, nil
	}
	lifetime, err := parseOptionalDuration(cfg.DB.MaxConnLifetime)
	if err != nil {
		return nil, nil, fmt.Errorf("db.max_conn_lifetime: %w", err)
	}
	store, err := snapshotpg.NewStore(ctx, snapshotpg.StoreConfig{
		DSN:             cfg.DB.DSN,
		Table:           cfg.DB.Table,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: lifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init snapshot store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, store.Close, nil
}

func buildArchiveSink(ctx context.Context, cfg config.Config, logger *zap.Logger) (archive.Sink, error) {
	switch cfg.Archive.Provider {
	case "", "noop":
		return archive.NoopSink{}, nil
	case "memory":
		return archivemem.New(), nil
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		logger.Info("archiving raw title XML to GCS", zap.String("bucket", cfg.Archive.GCSBucket))
		return archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.GCSBucket})
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Publisher, error) {
	switch cfg.Notify.Provider {
	case "", "noop":
		return notify.NoopPublisher{}, nil
	case "memory":
		return notifymem.New(), nil
	case "pubsub":
		client, err := pubsubclient.NewClient(ctx, cfg.Notify.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		logger.Info("publishing run events to Pub/Sub", zap.String("topic", cfg.Notify.Topic))
		return notifypubsub.New(client), nil
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", cfg.Notify.Provider)
	}
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
