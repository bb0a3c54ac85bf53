// Package duckdb runs the HR store in-process on DuckDB. It serves the demo
// and test profiles, seeded from the bundled dataset or hydrated from an
// exported Parquet snapshot.
package duckdb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/hrchat/hrchat/internal/hrdata"
	"github.com/hrchat/hrchat/internal/hrquery"
)

//go:embed schema.sql
var schemaSQL string

type Config struct {
	// Path is the database file; empty keeps the database in memory.
	Path string
}

// Open opens the database and creates the HR tables and analytic macros.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("duckdb", strings.TrimSpace(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	if err := execScript(ctx, db, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create duckdb schema: %w", err)
	}
	return db, nil
}

// Seed inserts the bundled demo dataset into an empty store.
func Seed(ctx context.Context, db *sql.DB) (bool, error) {
	var count int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&count); err != nil {
		return false, fmt.Errorf("count employees: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if err := execScript(ctx, db, hrdata.SeedSQL()); err != nil {
		return false, fmt.Errorf("insert demo dataset: %w", err)
	}
	return true, nil
}

// LoadParquet replaces the contents of each table with the rows of its
// Parquet file. files maps table name to a local file path.
func LoadParquet(ctx context.Context, db *sql.DB, files map[string]string) error {
	tables := make([]string, 0, len(files))
	for table := range files {
		if _, ok := hrquery.LookupTable(table); !ok {
			return fmt.Errorf("unknown table %q in snapshot", table)
		}
		tables = append(tables, table)
	}
	sort.Strings(tables)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+quoteIdent(table)); err != nil {
			return fmt.Errorf("clear table %q: %w", table, err)
		}
		insert := fmt.Sprintf(`INSERT INTO %s BY NAME SELECT * FROM read_parquet(%s)`, quoteIdent(table), quoteString(files[table]))
		if _, err := tx.ExecContext(ctx, insert); err != nil {
			return fmt.Errorf("load table %q: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot load: %w", err)
	}
	return nil
}

// execScript runs a semicolon separated script one statement at a time. The
// bundled scripts carry no semicolons inside literals.
func execScript(ctx context.Context, db *sql.DB, script string) error {
	for _, statement := range strings.Split(script, ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" || isComment(statement) {
			continue
		}
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}

func isComment(statement string) bool {
	for _, line := range strings.Split(statement, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
