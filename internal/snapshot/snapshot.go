// Package snapshot exports the HR tables to Parquet files in object storage
// and fetches them back for the embedded DuckDB store.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/hrchat/hrchat/internal/hrdata"
	"github.com/hrchat/hrchat/internal/hrquery"
	"github.com/hrchat/hrchat/internal/storage"
)

const idLayout = "20060102T150405Z"

// LatestID selects the snapshot named by the LATEST pointer.
const LatestID = "latest"

type Manifest struct {
	SnapshotID string               `json:"snapshot_id"`
	CreatedAt  time.Time            `json:"created_at"`
	Tables     map[string]TableFile `json:"tables"`
}

type TableFile struct {
	Path      string `json:"path"`
	Rows      int    `json:"rows"`
	SizeBytes int64  `json:"size_bytes"`
}

type DatasetReader interface {
	ReadDataset(ctx context.Context) (hrdata.Dataset, error)
}

type Exporter struct {
	Source DatasetReader
	Store  storage.ObjectStore
	Logger *slog.Logger
	Now    func() time.Time
}

func NewExporter(source DatasetReader, store storage.ObjectStore, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Exporter{Source: source, Store: store, Logger: logger, Now: time.Now}
}

// Export writes one Parquet file per table, then the manifest, then moves the
// LATEST pointer. Readers following LATEST never see a partial snapshot.
func (e *Exporter) Export(ctx context.Context) (Manifest, error) {
	if e.Source == nil || e.Store == nil {
		return Manifest{}, fmt.Errorf("snapshot source and object store are required")
	}
	dataset, err := e.Source.ReadDataset(ctx)
	if err != nil {
		return Manifest{}, fmt.Errorf("read hr dataset: %w", err)
	}

	now := e.Now().UTC()
	manifest := Manifest{
		SnapshotID: now.Format(idLayout),
		CreatedAt:  now,
		Tables:     make(map[string]TableFile, 5),
	}

	encoded := map[string]func() ([]byte, error){
		hrquery.TableEmployees:     func() ([]byte, error) { return EncodeTable(dataset.Employees) },
		hrquery.TableAttendance:    func() ([]byte, error) { return EncodeTable(dataset.Attendance) },
		hrquery.TableLeaveRequests: func() ([]byte, error) { return EncodeTable(dataset.LeaveRequests) },
		hrquery.TablePayroll:       func() ([]byte, error) { return EncodeTable(dataset.Payroll) },
		hrquery.TableBenefits:      func() ([]byte, error) { return EncodeTable(dataset.Benefits) },
	}
	counts := dataset.RowCounts()

	for _, table := range sortedKeys(encoded) {
		data, err := encoded[table]()
		if err != nil {
			return Manifest{}, fmt.Errorf("encode %s: %w", table, err)
		}
		key, err := storage.SnapshotTablePath(manifest.SnapshotID, table)
		if err != nil {
			return Manifest{}, err
		}
		info, err := storage.PutBytes(ctx, e.Store, key, data, "application/vnd.apache.parquet")
		if err != nil {
			return Manifest{}, fmt.Errorf("upload %s: %w", table, err)
		}
		manifest.Tables[table] = TableFile{Path: key, Rows: counts[table], SizeBytes: info.Size}
		e.Logger.InfoContext(ctx, "snapshot table uploaded",
			slog.String("snapshot_id", manifest.SnapshotID),
			slog.String("table", table),
			slog.Int("rows", counts[table]),
		)
	}

	manifestKey, err := storage.SnapshotManifestPath(manifest.SnapshotID)
	if err != nil {
		return Manifest{}, err
	}
	if _, err := storage.PutJSON(ctx, e.Store, manifestKey, manifest); err != nil {
		return Manifest{}, fmt.Errorf("upload manifest: %w", err)
	}
	if _, err := storage.PutBytes(ctx, e.Store, storage.LatestPointerPath, []byte(manifest.SnapshotID), "text/plain"); err != nil {
		return Manifest{}, fmt.Errorf("update latest pointer: %w", err)
	}
	return manifest, nil
}

// EncodeTable writes rows as a single Parquet file using the struct tags of T.
func EncodeTable[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// ResolveID maps "" and "latest" to the id stored in the LATEST pointer.
func ResolveID(ctx context.Context, store storage.ObjectStore, snapshotID string) (string, error) {
	snapshotID = strings.TrimSpace(snapshotID)
	if snapshotID != "" && !strings.EqualFold(snapshotID, LatestID) {
		return snapshotID, nil
	}
	reader, err := store.Get(ctx, storage.LatestPointerPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", fmt.Errorf("no snapshot has been exported yet: %w", err)
		}
		return "", err
	}
	defer func() { _ = reader.Close() }()
	raw, err := io.ReadAll(io.LimitReader(reader, 256))
	if err != nil {
		return "", fmt.Errorf("read latest pointer: %w", err)
	}
	id := strings.TrimSpace(string(raw))
	if id == "" {
		return "", fmt.Errorf("latest pointer is empty")
	}
	return id, nil
}

// Fetch downloads every table file of a snapshot into dir and returns the
// local path per table.
func Fetch(ctx context.Context, store storage.ObjectStore, snapshotID, dir string) (Manifest, map[string]string, error) {
	id, err := ResolveID(ctx, store, snapshotID)
	if err != nil {
		return Manifest{}, nil, err
	}
	manifestKey, err := storage.SnapshotManifestPath(id)
	if err != nil {
		return Manifest{}, nil, err
	}
	var manifest Manifest
	if err := storage.GetJSON(ctx, store, manifestKey, &manifest); err != nil {
		return Manifest{}, nil, fmt.Errorf("load manifest for snapshot %s: %w", id, err)
	}

	files := make(map[string]string, len(manifest.Tables))
	for _, table := range sortedKeys(manifest.Tables) {
		if _, ok := hrquery.LookupTable(table); !ok {
			return Manifest{}, nil, fmt.Errorf("snapshot %s lists unknown table %q", id, table)
		}
		entry := manifest.Tables[table]
		info, err := store.Stat(ctx, entry.Path)
		if err != nil {
			return Manifest{}, nil, fmt.Errorf("stat %s: %w", table, err)
		}
		if entry.SizeBytes > 0 && info.Size != entry.SizeBytes {
			return Manifest{}, nil, fmt.Errorf("snapshot %s: %s is %d bytes, manifest says %d", id, table, info.Size, entry.SizeBytes)
		}
		localPath := filepath.Join(dir, table+".parquet")
		if err := download(ctx, store, entry.Path, localPath); err != nil {
			return Manifest{}, nil, fmt.Errorf("download %s: %w", table, err)
		}
		files[table] = localPath
	}
	return manifest, files, nil
}

func download(ctx context.Context, store storage.ObjectStore, key, localPath string) error {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	file, err := os.OpenFile(localPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(0o600))
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
