// Package store opens the HR store selected by configuration.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hrchat/hrchat/internal/config"
	"github.com/hrchat/hrchat/internal/observability"
	"github.com/hrchat/hrchat/internal/snapshot"
	"github.com/hrchat/hrchat/internal/storage"
	s3store "github.com/hrchat/hrchat/internal/storage/s3"
	"github.com/hrchat/hrchat/internal/store/duckdb"
	"github.com/hrchat/hrchat/internal/store/postgres"
	"github.com/hrchat/hrchat/internal/store/sqlstore"
)

// Open connects to the configured HR store. The embedded driver is hydrated
// from an exported snapshot when one is configured and seeded with the demo
// dataset otherwise.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		return postgres.Open(ctx, postgres.ConfigFrom(cfg.Store))
	case config.StoreDriverDuckDB:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	db, err := duckdb.Open(ctx, duckdb.Config{Path: cfg.Store.DuckDBPath})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Store.SnapshotID) != "" {
		objects, err := s3store.New(ctx, s3store.ConfigFrom(cfg.ObjectStore))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("open snapshot object store: %w", err)
		}
		if _, err := Hydrate(ctx, db, objects, cfg.Store.SnapshotID, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	seeded, err := duckdb.Seed(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.InfoContext(ctx, "embedded hr store ready", slog.Bool("seeded", seeded), slog.String("path", cfg.Store.DuckDBPath))
	return db, nil
}

// Hydrate replaces the embedded store contents with a snapshot.
func Hydrate(ctx context.Context, db *sql.DB, objects storage.ObjectStore, snapshotID string, logger *slog.Logger) (snapshot.Manifest, error) {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	dir, err := os.MkdirTemp("", "hrchat-snapshot-")
	if err != nil {
		return snapshot.Manifest{}, fmt.Errorf("create snapshot dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	manifest, files, err := snapshot.Fetch(ctx, objects, snapshotID, dir)
	if err != nil {
		return snapshot.Manifest{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	if err := duckdb.LoadParquet(ctx, db, files); err != nil {
		return snapshot.Manifest{}, fmt.Errorf("load snapshot %s: %w", manifest.SnapshotID, err)
	}
	logger.InfoContext(ctx, "embedded hr store hydrated",
		slog.String("snapshot_id", manifest.SnapshotID),
		slog.Int("tables", len(files)),
	)
	return manifest, nil
}

// VerifySnapshot hydrates a scratch in-memory store from snapshotID and checks
// every table holds the row count recorded in the manifest.
func VerifySnapshot(ctx context.Context, objects storage.ObjectStore, snapshotID string, logger *slog.Logger) (snapshot.Manifest, error) {
	db, err := duckdb.Open(ctx, duckdb.Config{})
	if err != nil {
		return snapshot.Manifest{}, err
	}
	defer func() { _ = db.Close() }()

	manifest, err := Hydrate(ctx, db, objects, snapshotID, logger)
	if err != nil {
		return snapshot.Manifest{}, err
	}
	dataset, err := sqlstore.New(db).ReadDataset(ctx)
	if err != nil {
		return snapshot.Manifest{}, fmt.Errorf("read hydrated snapshot: %w", err)
	}
	counts := dataset.RowCounts()
	for table, entry := range manifest.Tables {
		if counts[table] != entry.Rows {
			return manifest, fmt.Errorf("snapshot %s: %s has %d rows, manifest says %d", manifest.SnapshotID, table, counts[table], entry.Rows)
		}
	}
	return manifest, nil
}
