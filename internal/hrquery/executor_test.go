package hrquery

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type recordingQuerier struct {
	statements []Statement
	responses  [][]Row
	err        error
}

func (r *recordingQuerier) Query(_ context.Context, stmt Statement) ([]Row, error) {
	r.statements = append(r.statements, stmt)
	if r.err != nil {
		return nil, r.err
	}
	if len(r.responses) == 0 {
		return nil, nil
	}
	rows := r.responses[0]
	r.responses = r.responses[1:]
	return rows, nil
}

func TestExecutorRoutesAverageSalaryShapeToProcedure(t *testing.T) {
	backend := &recordingQuerier{responses: [][]Row{{{"avg_salary": "52000.50"}}}}
	executor := NewExecutor(backend, nil, nil)

	result, err := executor.Run(context.Background(), Query{
		Type:    TypeAggregate,
		Table:   TableEmployees,
		Columns: []string{"AVG(salary)"},
	}, Scope{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Route != RouteShape || result.Operation != OperationAverageSalary {
		t.Fatalf("unexpected route %s / %s", result.Route, result.Operation)
	}
	if len(backend.statements) != 1 || backend.statements[0].SQL != "SELECT * FROM hr_avg_salary()" {
		t.Fatalf("unexpected statements: %+v", backend.statements)
	}
	if !reflect.DeepEqual(result.Rows, []Row{{"avg_salary": 52000.5}}) {
		t.Fatalf("rows = %#v", result.Rows)
	}
}

func TestExecutorRenamesProcedureOutputsToCallerAliases(t *testing.T) {
	backend := &recordingQuerier{responses: [][]Row{{{"department": "IT", "avg_salary": 61000.0}}}}
	executor := NewExecutor(backend, nil, nil)

	rows, err := executor.Execute(context.Background(), Query{
		Type:    TypeAggregate,
		Table:   TableEmployees,
		Columns: []string{"department", "AVG(salary) AS average"},
		OrderBy: []OrderBy{{Column: "average", Direction: "desc"}},
		Limit:   1,
	}, Scope{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if backend.statements[0].SQL != "SELECT * FROM hr_top_department_by_avg_salary()" {
		t.Fatalf("sql = %s", backend.statements[0].SQL)
	}
	if !reflect.DeepEqual(rows, []Row{{"department": "IT", "average": 61000.0}}) {
		t.Fatalf("rows = %#v", rows)
	}
}

func TestExecutorTotalHoursShapeBindsParameters(t *testing.T) {
	backend := &recordingQuerier{responses: [][]Row{{{"total_hours": 152.5}}}}
	executor := NewExecutor(backend, passthroughDates{}, nil)

	_, err := executor.Execute(context.Background(), Query{
		Type:    TypeAggregate,
		Table:   TableAttendance,
		Columns: []string{"SUM(total_hours) AS total_hours"},
		Conditions: map[string]Condition{
			"emp_id": {Operator: OpEq, Value: int64(3)},
			"date":   {Operator: OpBetween, Value: "2024-03-01 AND 2024-03-31"},
		},
	}, Scope{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	stmt := backend.statements[0]
	if stmt.SQL != "SELECT * FROM hr_total_hours($1, CAST($2 AS DATE), CAST($3 AS DATE))" {
		t.Fatalf("sql = %s", stmt.SQL)
	}
	if !reflect.DeepEqual(stmt.Args, []any{int64(3), "2024-03-01", "2024-03-31"}) {
		t.Fatalf("args = %#v", stmt.Args)
	}
}

func TestExecutorScopedOperationRunsGenericQuery(t *testing.T) {
	backend := &recordingQuerier{responses: [][]Row{{{"avg_salary": 45000.0}}}}
	executor := NewExecutor(backend, nil, nil)
	id := int64(5)

	result, err := executor.Run(context.Background(), Query{
		Operation: &Operation{Name: OperationAverageSalary},
	}, Scope{EmployeeID: &id})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Route != RouteGeneric || result.Operation != OperationAverageSalary {
		t.Fatalf("route = %s, operation = %s", result.Route, result.Operation)
	}
	want := `SELECT AVG("salary") AS "avg_salary" FROM "employees" WHERE "emp_id" = $1`
	if backend.statements[0].SQL != want {
		t.Fatalf("sql = %s", backend.statements[0].SQL)
	}
}

func TestExecutorResolvesNameSubqueryBeforeQuery(t *testing.T) {
	backend := &recordingQuerier{responses: [][]Row{
		{{"emp_id": int32(2)}, {"emp_id": int64(9)}},
		{{"leave_type": "sick", "days": "2.0"}},
	}}
	executor := NewExecutor(backend, nil, nil)

	rows, err := executor.Execute(context.Background(), Query{
		Type:    TypeSelect,
		Table:   TableLeaveRequests,
		Columns: []string{"leave_type", "days"},
		Conditions: map[string]Condition{
			"emp_id": {Operator: OpEq, Value: "(SELECT emp_id FROM employees WHERE first_name LIKE '%Somchai%')"},
		},
	}, Scope{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(backend.statements) != 2 {
		t.Fatalf("expected lookup and query, got %d statements", len(backend.statements))
	}
	if !strings.Contains(backend.statements[0].SQL, `"first_name" ILIKE $1`) {
		t.Fatalf("lookup sql = %s", backend.statements[0].SQL)
	}
	if !strings.HasSuffix(backend.statements[1].SQL, `WHERE "emp_id" IN ($1, $2)`) {
		t.Fatalf("query sql = %s", backend.statements[1].SQL)
	}
	if !reflect.DeepEqual(rows, []Row{{"leave_type": "sick", "days": 2.0}}) {
		t.Fatalf("rows = %#v", rows)
	}
}

func TestExecutorKeepsSelectPrefixedLiterals(t *testing.T) {
	backend := &recordingQuerier{responses: [][]Row{{{"emp_id": int64(4)}}}}
	executor := NewExecutor(backend, nil, nil)

	_, err := executor.Execute(context.Background(), Query{
		Type:       TypeSelect,
		Table:      TableEmployees,
		Columns:    []string{"emp_id"},
		Conditions: map[string]Condition{"position": {Operator: OpEq, Value: "Selection Lead"}},
	}, Scope{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(backend.statements) != 1 {
		t.Fatalf("expected a single query, got %d statements", len(backend.statements))
	}
	if !reflect.DeepEqual(backend.statements[0].Args, []any{"Selection Lead"}) {
		t.Fatalf("args = %#v", backend.statements[0].Args)
	}
}

func TestIsSubqueryRequiresParenthesisedSelect(t *testing.T) {
	for value, want := range map[any]bool{
		"(SELECT emp_id FROM employees WHERE emp_id = 3)":   true,
		"  ( select emp_id from employees where emp_id = 3)": true,
		"SELECT emp_id FROM employees":                       false,
		"Selection Lead":                                     false,
		"(Selection)":                                        false,
		int64(3):                                             false,
	} {
		if got := IsSubquery(value); got != want {
			t.Errorf("IsSubquery(%v) = %v, want %v", value, got, want)
		}
	}
}

func TestExecutorWrapsBackendErrors(t *testing.T) {
	backend := &recordingQuerier{err: errors.New("connection reset")}
	executor := NewExecutor(backend, nil, nil)

	_, err := executor.Execute(context.Background(), Query{Type: TypeSelect, Table: TableEmployees}, Scope{})
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestExecutorRejectsInvalidQueryWithoutBackendCall(t *testing.T) {
	backend := &recordingQuerier{}
	executor := NewExecutor(backend, nil, nil)

	_, err := executor.Execute(context.Background(), Query{
		Type:       TypeSelect,
		Table:      TableEmployees,
		Conditions: map[string]Condition{"salary": {Operator: "REGEXP", Value: "9+"}},
	}, Scope{})
	if !errors.Is(err, ErrUnsupportedOperator) {
		t.Fatalf("expected unsupported operator, got %v", err)
	}
	if len(backend.statements) != 0 {
		t.Fatalf("backend should not be called, got %d statements", len(backend.statements))
	}
}

func TestExecutorReturnsEmptyRowsNotNil(t *testing.T) {
	executor := NewExecutor(&recordingQuerier{}, nil, nil)
	rows, err := executor.Execute(context.Background(), Query{Type: TypeSelect, Table: TableBenefits}, Scope{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty non-nil rows, got %#v", rows)
	}
}

func TestResolverRejectsUnsupportedSubquery(t *testing.T) {
	backend := &recordingQuerier{}
	resolver := &Resolver{Backend: backend}

	for _, text := range []string{
		"SELECT emp_id FROM payroll WHERE net_salary > 10",
		"SELECT emp_id FROM employees WHERE department = 'IT'",
		"SELECT emp_id FROM employees WHERE first_name LIKE '%%'",
	} {
		if _, err := resolver.Resolve(context.Background(), text); !errors.Is(err, ErrUnsupportedSubquery) {
			t.Fatalf("%q: expected unsupported subquery, got %v", text, err)
		}
	}
	if len(backend.statements) != 0 {
		t.Fatalf("backend should not be called")
	}
}

func TestResolverMatchesBothNamesAndReturnsEmptySlice(t *testing.T) {
	backend := &recordingQuerier{}
	resolver := &Resolver{Backend: backend}

	ids, err := resolver.Resolve(context.Background(), "select emp_id from employees where first_name like '%Somchai%' and last_name like '%Jaidee%'")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Fatalf("expected empty non-nil ids, got %#v", ids)
	}
	stmt := backend.statements[0]
	if !strings.Contains(stmt.SQL, `"first_name" ILIKE $1 AND "last_name" ILIKE $2`) {
		t.Fatalf("sql = %s", stmt.SQL)
	}
	if !reflect.DeepEqual(stmt.Args, []any{"%Somchai%", "%Jaidee%"}) {
		t.Fatalf("args = %#v", stmt.Args)
	}
}
