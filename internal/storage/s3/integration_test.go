//go:build integration

package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hrchat/hrchat/internal/storage"
)

func TestStoreRoundTripAgainstMinIO(t *testing.T) {
	endpoint := envOr("HRCHAT_TEST_S3_ENDPOINT", "")
	if endpoint == "" {
		t.Skip("HRCHAT_TEST_S3_ENDPOINT is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	store, err := New(ctx, Config{
		Endpoint:         endpoint,
		Region:           envOr("HRCHAT_TEST_S3_REGION", "us-east-1"),
		Bucket:           envOr("HRCHAT_TEST_S3_BUCKET", "hrchat-it"),
		AccessKeyID:      envOr("HRCHAT_TEST_S3_ACCESS_KEY", "minio"),
		SecretAccessKey:  envOr("HRCHAT_TEST_S3_SECRET_KEY", "miniostorage"),
		Prefix:           "integration-tests",
		AutoCreateBucket: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key, err := storage.SnapshotManifestPath(fmt.Sprintf("it-%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("SnapshotManifestPath() error = %v", err)
	}
	payload := []byte(`{"tables":{}}`)
	if _, err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	stat, err := store.Stat(ctx, key)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if stat.Size != int64(len(payload)) {
		t.Fatalf("Stat().Size = %d, want %d", stat.Size, len(payload))
	}

	reader, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	body, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("Get() payload = %q, want %q", body, payload)
	}

	if _, err := store.Get(ctx, "snapshots/missing/manifest.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrObjectNotFound", err)
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
