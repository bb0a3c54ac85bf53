// Package sqlstore reads the HR tables through database/sql. The SQL it issues
// is shared by the PostgreSQL and DuckDB backends.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hrchat/hrchat/internal/hrdata"
	"github.com/hrchat/hrchat/internal/hrquery"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping hr store: %w", err)
	}
	return nil
}

// Query runs a compiled statement and returns each row keyed by column name.
func (s *Store) Query(ctx context.Context, stmt hrquery.Statement) ([]hrquery.Row, error) {
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	out := make([]hrquery.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(hrquery.Row, len(columns))
		for i, column := range columns {
			if raw, ok := values[i].([]byte); ok {
				row[column] = string(raw)
				continue
			}
			row[column] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// RosterEntry is the subset of employee data shown in the employee selector.
type RosterEntry struct {
	EmpID      int64  `json:"emp_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Department string `json:"department"`
	Position   string `json:"position"`
}

func (s *Store) ListEmployees(ctx context.Context) ([]RosterEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT emp_id, first_name, last_name, department, position
FROM employees
ORDER BY emp_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	roster := make([]RosterEntry, 0)
	for rows.Next() {
		var entry RosterEntry
		if err := rows.Scan(&entry.EmpID, &entry.FirstName, &entry.LastName, &entry.Department, &entry.Position); err != nil {
			return nil, fmt.Errorf("scan employee row: %w", err)
		}
		roster = append(roster, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employee rows: %w", err)
	}
	return roster, nil
}

// EmployeeNames maps the given ids to "first last". Unknown ids are absent
// from the result.
func (s *Store) EmployeeNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}
	query := fmt.Sprintf(`
SELECT emp_id, first_name, last_name
FROM employees
WHERE emp_id IN (%s)`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup employee names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var employee hrdata.Employee
		if err := rows.Scan(&employee.EmpID, &employee.FirstName, &employee.LastName); err != nil {
			return nil, fmt.Errorf("scan employee name: %w", err)
		}
		names[employee.EmpID] = employee.DisplayName()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employee names: %w", err)
	}
	return names, nil
}

// Seed loads the bundled demo dataset when the employees table is empty. It
// reports whether rows were inserted.
func (s *Store) Seed(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&count); err != nil {
		return false, fmt.Errorf("count employees: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, hrdata.SeedSQL()); err != nil {
		return false, fmt.Errorf("insert demo dataset: %w", err)
	}
	return true, nil
}
