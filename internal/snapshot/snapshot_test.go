package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/hrchat/hrchat/internal/hrdata"
	"github.com/hrchat/hrchat/internal/storage"
)

func TestExportWritesTablesManifestAndLatest(t *testing.T) {
	store := newMemStore()
	reason := "flu"
	exporter := NewExporter(fixedDataset{dataset: hrdata.Dataset{
		Employees: []hrdata.Employee{
			{EmpID: 1, FirstName: "Somchai", LastName: "Jaidee", Department: "IT", Position: "Software Engineer", Salary: 55000, HireDate: "2019-03-01"},
			{EmpID: 3, FirstName: "Anan", LastName: "Srisuk", Department: "IT", Position: "System Administrator", Salary: 48000, HireDate: "2020-01-10"},
		},
		LeaveRequests: []hrdata.LeaveRequest{
			{LeaveID: 2, EmpID: 3, LeaveType: "sick", StartDate: "2025-02-03", EndDate: "2025-02-04", Days: 2, Status: "approved", Reason: &reason},
		},
	}}, store, nil)
	exporter.Now = func() time.Time { return time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC) }

	manifest, err := exporter.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if manifest.SnapshotID != "20250315T090000Z" {
		t.Fatalf("SnapshotID = %q", manifest.SnapshotID)
	}
	if len(manifest.Tables) != 5 {
		t.Fatalf("tables = %+v", manifest.Tables)
	}
	if got := manifest.Tables["employees"]; got.Rows != 2 || got.Path != "snapshots/20250315T090000Z/employees.parquet" {
		t.Fatalf("employees entry = %+v", got)
	}
	if string(store.objects[storage.LatestPointerPath]) != "20250315T090000Z" {
		t.Fatalf("LATEST = %q", store.objects[storage.LatestPointerPath])
	}

	data := store.objects["snapshots/20250315T090000Z/employees.parquet"]
	reader := parquet.NewGenericReader[hrdata.Employee](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()
	rows := make([]hrdata.Employee, 2)
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader.Read() error = %v", err)
	}
	if count != 2 || rows[1].LastName != "Srisuk" {
		t.Fatalf("read %d rows: %+v", count, rows)
	}
}

func TestFetchFollowsLatestPointer(t *testing.T) {
	store := newMemStore()
	exporter := NewExporter(fixedDataset{dataset: hrdata.Dataset{
		Employees: []hrdata.Employee{{EmpID: 1, FirstName: "Somchai", HireDate: "2019-03-01"}},
	}}, store, nil)
	exported, err := exporter.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	manifest, files, err := Fetch(context.Background(), store, LatestID, t.TempDir())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if manifest.SnapshotID != exported.SnapshotID {
		t.Fatalf("SnapshotID = %q, want %q", manifest.SnapshotID, exported.SnapshotID)
	}
	if len(files) != 5 {
		t.Fatalf("files = %+v", files)
	}
	info, err := os.Stat(files["employees"])
	if err != nil {
		t.Fatalf("stat employees file: %v", err)
	}
	if info.Size() != exported.Tables["employees"].SizeBytes {
		t.Fatalf("size = %d, want %d", info.Size(), exported.Tables["employees"].SizeBytes)
	}
}

func TestResolveIDWithoutExport(t *testing.T) {
	_, err := ResolveID(context.Background(), newMemStore(), "")
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("ResolveID() error = %v", err)
	}
	id, err := ResolveID(context.Background(), newMemStore(), "20250101T000000Z")
	if err != nil || id != "20250101T000000Z" {
		t.Fatalf("ResolveID(explicit) = %q, %v", id, err)
	}
}

type fixedDataset struct {
	dataset hrdata.Dataset
}

func (f fixedDataset) ReadDataset(context.Context) (hrdata.Dataset, error) {
	return f.dataset, nil
}

type memStore struct {
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}
