package storage

import (
	"fmt"
	"path"
	"regexp"
)

// LatestPointerPath holds the id of the most recent complete snapshot.
const LatestPointerPath = "snapshots/LATEST"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

func SnapshotTablePath(snapshotID, tableName string) (string, error) {
	if err := validatePathComponent(snapshotID, "snapshot id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	return path.Join("snapshots", snapshotID, tableName+".parquet"), nil
}

func SnapshotManifestPath(snapshotID string) (string, error) {
	if err := validatePathComponent(snapshotID, "snapshot id"); err != nil {
		return "", err
	}
	return path.Join("snapshots", snapshotID, "manifest.json"), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
