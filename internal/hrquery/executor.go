package hrquery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

type Row map[string]any

// Querier runs a compiled statement and returns rows keyed by column name.
type Querier interface {
	Query(ctx context.Context, stmt Statement) ([]Row, error)
}

type Route string

const (
	RouteGeneric   Route = "generic"
	RouteShape     Route = "shape"
	RouteOperation Route = "operation"
)

type Result struct {
	Rows      []Row
	Route     Route
	Operation string
	Statement Statement
}

type Executor struct {
	Backend  Querier
	Compiler Compiler
	Resolver *Resolver
	Logger   *slog.Logger
}

func NewExecutor(backend Querier, dates DateNormalizer, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{
		Backend:  backend,
		Compiler: Compiler{Dates: dates},
		Resolver: &Resolver{Backend: backend},
		Logger:   logger,
	}
}

func (e *Executor) Execute(ctx context.Context, q Query, scope Scope) ([]Row, error) {
	result, err := e.Run(ctx, q, scope)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// Run executes q and reports which route answered it. Named operations and
// recognised aggregate shapes call the matching procedure unless scope is
// restricted, in which case the equivalent generic query is scoped instead.
func (e *Executor) Run(ctx context.Context, q Query, scope Scope) (Result, error) {
	if e.Backend == nil {
		return Result{}, fmt.Errorf("query backend is required")
	}
	if err := q.Validate(); err != nil {
		return Result{}, err
	}

	q, err := e.resolveSubqueries(ctx, q)
	if err != nil {
		return Result{}, err
	}

	if q.Operation != nil {
		if scope.Restricted() {
			expanded, err := e.Compiler.Expand(*q.Operation)
			if err != nil {
				return Result{}, err
			}
			result, err := e.runGeneric(ctx, expanded, scope)
			result.Operation = q.Operation.Name
			return result, err
		}
		return e.runOperation(ctx, *q.Operation, nil, RouteOperation)
	}

	if op, aliases, ok := e.Compiler.matchShape(q); ok && !scope.Restricted() {
		return e.runOperation(ctx, op, aliases, RouteShape)
	}
	return e.runGeneric(ctx, q, scope)
}

func (e *Executor) resolveSubqueries(ctx context.Context, q Query) (Query, error) {
	out := q
	for _, column := range q.ConditionColumns() {
		condition := q.Conditions[column]
		if condition.Operator != OpEq && condition.Operator != OpIn {
			continue
		}
		text, ok := condition.Value.(string)
		if !ok || !IsSubquery(text) {
			continue
		}
		if e.Resolver == nil {
			return Query{}, fmt.Errorf("%w: no resolver configured", ErrUnsupportedSubquery)
		}
		ids, err := e.Resolver.Resolve(ctx, text)
		if err != nil {
			return Query{}, err
		}
		values := make([]any, 0, len(ids))
		for _, id := range ids {
			values = append(values, id)
		}
		e.Logger.DebugContext(ctx, "resolved employee subquery",
			slog.String("column", column),
			slog.Int("matches", len(ids)),
		)
		out = out.WithCondition(column, Condition{Operator: OpIn, Value: values})
	}
	return out, nil
}

func (e *Executor) runOperation(ctx context.Context, op Operation, aliases []string, route Route) (Result, error) {
	stmt, outputs, err := e.Compiler.CompileOperation(op)
	if err != nil {
		return Result{}, err
	}
	e.Logger.DebugContext(ctx, "executing hr operation",
		slog.String("operation", op.Name),
		slog.String("route", string(route)),
	)
	rows, err := e.Backend.Query(ctx, stmt)
	if err != nil {
		return Result{}, &BackendError{Op: "call " + op.Name, Err: err}
	}
	rows = normalizeRows(rows, operationKinds(outputs))
	if len(aliases) == len(outputs) {
		rows = renameColumns(rows, outputs, aliases)
	}
	return Result{Rows: rows, Route: route, Operation: op.Name, Statement: stmt}, nil
}

func (e *Executor) runGeneric(ctx context.Context, q Query, scope Scope) (Result, error) {
	stmt, err := e.Compiler.Compile(q, scope)
	if err != nil {
		return Result{}, err
	}
	table, _ := LookupTable(q.Table)
	projections, err := parseProjections(table, q)
	if err != nil {
		return Result{}, err
	}
	e.Logger.DebugContext(ctx, "executing hr query",
		slog.String("table", q.Table),
		slog.String("sql", stmt.SQL),
		slog.Int("args", len(stmt.Args)),
		slog.Bool("scoped", scope.Restricted()),
	)
	rows, err := e.Backend.Query(ctx, stmt)
	if err != nil {
		return Result{}, &BackendError{Op: "query " + q.Table, Err: err}
	}
	return Result{
		Rows:      normalizeRows(rows, projectionKinds(table, projections)),
		Route:     RouteGeneric,
		Statement: stmt,
	}, nil
}

func projectionKinds(table Table, projections []projection) map[string]ColumnKind {
	kinds := make(map[string]ColumnKind, len(projections))
	for _, p := range projections {
		if !p.aggregate {
			col, _ := table.Column(p.column)
			kinds[p.output] = col.Kind
			continue
		}
		switch p.function {
		case "COUNT":
			kinds[p.output] = KindInteger
		case "SUM", "AVG":
			kinds[p.output] = KindNumeric
		default:
			col, _ := table.Column(p.column)
			kinds[p.output] = col.Kind
		}
	}
	return kinds
}

func operationKinds(outputs []string) map[string]ColumnKind {
	kinds := make(map[string]ColumnKind, len(outputs))
	for _, name := range outputs {
		switch name {
		case "department":
			kinds[name] = KindText
		case "emp_id", "absent_days":
			kinds[name] = KindInteger
		default:
			kinds[name] = KindNumeric
		}
	}
	return kinds
}

func renameColumns(rows []Row, from, to []string) []Row {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		renamed := make(Row, len(row))
		for key, value := range row {
			renamed[key] = value
		}
		for i := range from {
			if from[i] == to[i] {
				continue
			}
			delete(renamed, from[i])
		}
		for i := range from {
			if value, ok := row[from[i]]; ok {
				renamed[to[i]] = value
			}
		}
		out = append(out, renamed)
	}
	return out
}

// normalizeRows converts driver values into JSON friendly values: numeric
// strings become numbers, dates become YYYY-MM-DD and times HH:MM:SS.
func normalizeRows(rows []Row, kinds map[string]ColumnKind) []Row {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		normalized := make(Row, len(row))
		for key, value := range row {
			kind, known := kinds[key]
			if !known {
				kind = KindText
			}
			normalized[key] = normalizeValue(value, kind)
		}
		out = append(out, normalized)
	}
	return out
}

func normalizeValue(value any, kind ColumnKind) any {
	if raw, ok := value.([]byte); ok {
		value = string(raw)
	}
	switch typed := value.(type) {
	case time.Time:
		if kind == KindTime {
			return typed.Format("15:04:05")
		}
		return typed.Format("2006-01-02")
	case int32:
		return int64(typed)
	case float32:
		return float64(typed)
	case string:
		switch kind {
		case KindNumeric:
			if f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64); err == nil {
				return f
			}
		case KindInteger:
			if n, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
				return n
			}
		}
		return typed
	default:
		return value
	}
}
