// Package storage defines the object store used for HR table snapshots.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

func PutBytes(ctx context.Context, store ObjectStore, key string, data []byte, contentType string) (ObjectInfo, error) {
	return store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), PutOptions{ContentType: contentType})
}

func PutJSON(ctx context.Context, store ObjectStore, key string, value any) (ObjectInfo, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("encode %q: %w", key, err)
	}
	return PutBytes(ctx, store, key, data, "application/json")
}

func GetJSON(ctx context.Context, store ObjectStore, key string, dst any) error {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()
	if err := json.NewDecoder(reader).Decode(dst); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}
