package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/hrchat/hrchat/internal/config"
	"github.com/hrchat/hrchat/internal/observability"
	"github.com/hrchat/hrchat/internal/snapshot"
	s3store "github.com/hrchat/hrchat/internal/storage/s3"
	"github.com/hrchat/hrchat/internal/store"
	"github.com/hrchat/hrchat/internal/store/sqlstore"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "export deadline")
	verify := flag.Bool("verify", false, "hydrate a scratch store from the new snapshot and compare row counts")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadFromEnv("hrchat-export")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Exporting from a snapshot-hydrated store would only copy the snapshot.
	cfg.Store.SnapshotID = ""
	db, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open hr store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	objects, err := s3store.New(ctx, s3store.ConfigFrom(cfg.ObjectStore))
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	manifest, err := snapshot.NewExporter(sqlstore.New(db), objects, logger).Export(ctx)
	if err != nil {
		logger.Error("snapshot export failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("snapshot exported",
		slog.String("snapshot_id", manifest.SnapshotID),
		slog.String("bucket", cfg.ObjectStore.Bucket),
		slog.Int("tables", len(manifest.Tables)),
	)

	if *verify {
		if _, err := store.VerifySnapshot(ctx, objects, manifest.SnapshotID, logger); err != nil {
			logger.Error("snapshot verification failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("snapshot verified", slog.String("snapshot_id", manifest.SnapshotID))
	}
}
