package hrquery

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type passthroughDates struct{}

func (passthroughDates) Normalize(value string) string      { return value }
func (passthroughDates) NormalizeExact(value string) string { return "exact:" + value }

func TestParseDecodesConditionsAndNumbers(t *testing.T) {
	q, err := Parse([]byte(`{
		"type": "select",
		"table": "Employees",
		"conditions": {
			"emp_id": 7,
			"salary": {"operator": ">=", "value": 45000.5},
			"department": {"operator": "in", "value": ["IT", "HR"]}
		}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Type != TypeSelect || q.Table != TableEmployees || q.ConditionLogic != LogicAnd {
		t.Fatalf("unexpected normalised query: %+v", q)
	}
	if got := q.Conditions["emp_id"]; got.Operator != OpEq || got.Value != int64(7) {
		t.Fatalf("bare literal condition = %+v", got)
	}
	if got := q.Conditions["salary"].Value; got != 45000.5 {
		t.Fatalf("salary value = %#v", got)
	}
	if got := q.Conditions["department"]; got.Operator != OpIn || !reflect.DeepEqual(got.Value, []any{"IT", "HR"}) {
		t.Fatalf("department condition = %+v", got)
	}
}

func TestCompileCombinesConditionsWithAndByDefault(t *testing.T) {
	q := Query{
		Type:    TypeSelect,
		Table:   TableEmployees,
		Columns: []string{"emp_id", "first_name"},
		Conditions: map[string]Condition{
			"position":   {Operator: OpEq, Value: "Developer"},
			"department": {Operator: OpLike, Value: "IT"},
		},
	}
	stmt, err := Compiler{}.Compile(q, Scope{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := `SELECT "emp_id", "first_name" FROM "employees" WHERE "department" ILIKE $1 AND "position" = $2`
	if stmt.SQL != want {
		t.Fatalf("sql = %s\nwant %s", stmt.SQL, want)
	}
	if !reflect.DeepEqual(stmt.Args, []any{"%IT%", "Developer"}) {
		t.Fatalf("args = %#v", stmt.Args)
	}
}

func TestCompileOrLogicKeepsScopeOutsideGroup(t *testing.T) {
	id := int64(5)
	q := Query{
		Type:           TypeSelect,
		Table:          TableAttendance,
		Columns:        []string{"date", "status"},
		Conditions:     map[string]Condition{"status": {Operator: OpEq, Value: "late"}, "total_hours": {Operator: OpLt, Value: int64(4)}},
		ConditionLogic: LogicOr,
	}
	stmt, err := Compiler{}.Compile(q, Scope{EmployeeID: &id})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(stmt.SQL, `WHERE ("status" = $1 OR "total_hours" < $2) AND "emp_id" = $3`) {
		t.Fatalf("unexpected where clause: %s", stmt.SQL)
	}
	if !reflect.DeepEqual(stmt.Args, []any{"late", float64(4), int64(5)}) {
		t.Fatalf("args = %#v", stmt.Args)
	}
}

func TestCompileBetweenOrdersBounds(t *testing.T) {
	q := Query{
		Type:       TypeSelect,
		Table:      TableAttendance,
		Conditions: map[string]Condition{"date": {Operator: OpBetween, Value: "2024-03-31 and 2024-03-01"}},
	}
	stmt, err := Compiler{Dates: passthroughDates{}}.Compile(q, Scope{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.HasSuffix(stmt.SQL, `WHERE "date" BETWEEN CAST($1 AS DATE) AND CAST($2 AS DATE)`) {
		t.Fatalf("sql = %s", stmt.SQL)
	}
	if !reflect.DeepEqual(stmt.Args, []any{"2024-03-01", "2024-03-31"}) {
		t.Fatalf("args = %#v", stmt.Args)
	}
}

func TestCompileBetweenRequiresTwoBounds(t *testing.T) {
	q := Query{
		Table:      TableAttendance,
		Type:       TypeSelect,
		Conditions: map[string]Condition{"date": {Operator: OpBetween, Value: "2024-03-01"}},
	}
	_, err := Compiler{}.Compile(q, Scope{})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected invalid query, got %v", err)
	}
}

func TestCompileUsesExactDatesForHireDate(t *testing.T) {
	q := Query{
		Type:       TypeSelect,
		Table:      TableEmployees,
		Columns:    []string{"emp_id"},
		Conditions: map[string]Condition{"hire_date": {Operator: OpGte, Value: "2020-01-01"}},
	}
	stmt, err := Compiler{Dates: passthroughDates{}}.Compile(q, Scope{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !reflect.DeepEqual(stmt.Args, []any{"exact:2020-01-01"}) {
		t.Fatalf("args = %#v", stmt.Args)
	}
}

func TestCompileCountAndAggregateProjection(t *testing.T) {
	stmt, err := Compiler{}.Compile(Query{Type: TypeCount, Table: TableEmployees}, Scope{})
	if err != nil {
		t.Fatalf("compile count: %v", err)
	}
	if stmt.SQL != `SELECT COUNT(*) AS "count" FROM "employees"` {
		t.Fatalf("count sql = %s", stmt.SQL)
	}

	stmt, err = Compiler{}.Compile(Query{
		Type:    TypeAggregate,
		Table:   TableEmployees,
		Columns: []string{"department", "AVG(salary) AS avg_salary"},
		OrderBy: []OrderBy{{Column: "AVG(salary)", Direction: "desc"}},
		Limit:   3,
	}, Scope{})
	if err != nil {
		t.Fatalf("compile aggregate: %v", err)
	}
	want := `SELECT "department", AVG("salary") AS "avg_salary" FROM "employees" GROUP BY "department" ORDER BY "avg_salary" DESC LIMIT 3`
	if stmt.SQL != want {
		t.Fatalf("sql = %s\nwant %s", stmt.SQL, want)
	}
}

func TestCompileInHandlesScalarAndEmptyLists(t *testing.T) {
	stmt, err := Compiler{}.Compile(Query{
		Type:       TypeSelect,
		Table:      TableLeaveRequests,
		Columns:    []string{"leave_id"},
		Conditions: map[string]Condition{"emp_id": {Operator: OpIn, Value: int64(3)}, "status": {Operator: OpIn, Value: []any{}}},
	}, Scope{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.HasSuffix(stmt.SQL, `WHERE "emp_id" IN ($1) AND FALSE`) {
		t.Fatalf("sql = %s", stmt.SQL)
	}
}

func TestValidateRejectsUnknownOperatorAndColumn(t *testing.T) {
	q := Query{Type: TypeSelect, Table: TableEmployees, Conditions: map[string]Condition{"salary": {Operator: "~=", Value: 1}}}
	if err := q.Validate(); !errors.Is(err, ErrUnsupportedOperator) {
		t.Fatalf("expected unsupported operator, got %v", err)
	}

	q = Query{Type: TypeSelect, Table: TableEmployees, Conditions: map[string]Condition{"nickname": {Operator: OpEq, Value: "x"}}}
	if err := q.Validate(); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected invalid query, got %v", err)
	}

	q = Query{Type: TypeSelect, Table: "salaries"}
	if err := q.Validate(); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected invalid table error, got %v", err)
	}
}

func TestCompileRejectsUnknownProjection(t *testing.T) {
	_, err := Compiler{}.Compile(Query{Type: TypeSelect, Table: TableEmployees, Columns: []string{"salary; DROP TABLE employees"}}, Scope{})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected invalid query, got %v", err)
	}
}
