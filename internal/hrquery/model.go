// Package hrquery holds the intermediate query representation produced by the
// translator and the executor that runs it against the HR store with a fixed
// operator set and bind parameters only.
package hrquery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type QueryType string

const (
	TypeSelect    QueryType = "SELECT"
	TypeCount     QueryType = "COUNT"
	TypeAggregate QueryType = "AGGREGATE"
)

type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

type Operator string

const (
	OpEq       Operator = "="
	OpNotEq    Operator = "!="
	OpNotEqAlt Operator = "<>"
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpIn       Operator = "IN"
	OpLike     Operator = "LIKE"
	OpBetween  Operator = "BETWEEN"
)

const (
	directionUp = "asc"
	directionDn = "desc"
)

var knownOperators = map[Operator]struct{}{
	OpEq: {}, OpNotEq: {}, OpNotEqAlt: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {},
	OpIn: {}, OpLike: {}, OpBetween: {},
}

type Condition struct {
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

type OrderBy struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// Operation names one of the fixed analytic commands instead of describing it
// with columns and conditions.
type Operation struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

type Query struct {
	Type           QueryType            `json:"type"`
	Table          string               `json:"table"`
	Columns        []string             `json:"columns,omitempty"`
	Conditions     map[string]Condition `json:"conditions,omitempty"`
	ConditionLogic Logic                `json:"conditionLogic,omitempty"`
	OrderBy        []OrderBy            `json:"orderBy,omitempty"`
	Limit          int                  `json:"limit,omitempty"`
	Operation      *Operation           `json:"operation,omitempty"`
}

// Parse decodes a query from JSON and normalises casing and defaults. JSON
// numbers become int64 when integral and float64 otherwise.
func Parse(raw []byte) (Query, error) {
	var q Query
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&q); err != nil {
		return Query{}, err
	}
	q.normalize()
	return q, nil
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var raw struct {
			Operator string          `json:"operator"`
			Value    json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		value, err := decodeValue(raw.Value)
		if err != nil {
			return err
		}
		c.Operator = Operator(strings.ToUpper(strings.TrimSpace(raw.Operator)))
		c.Value = value
		return nil
	}
	// a bare literal means equality
	value, err := decodeValue(trimmed)
	if err != nil {
		return err
	}
	c.Operator = OpEq
	c.Value = value
	return nil
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name   string          `json:"name"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Name = strings.ToLower(strings.TrimSpace(raw.Name))
	o.Params = nil
	if len(bytes.TrimSpace(raw.Params)) == 0 {
		return nil
	}
	value, err := decodeValue(raw.Params)
	if err != nil {
		return err
	}
	if value == nil {
		return nil
	}
	params, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("operation params must be an object")
	}
	o.Params = params
	return nil
}

func decodeValue(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	return normalizeJSONValue(value), nil
}

func normalizeJSONValue(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeJSONValue(item)
		}
		return out
	default:
		return value
	}
}

func (q *Query) normalize() {
	q.Type = QueryType(strings.ToUpper(strings.TrimSpace(string(q.Type))))
	if q.Type == "" {
		q.Type = TypeSelect
	}
	q.Table = strings.ToLower(strings.TrimSpace(q.Table))
	q.ConditionLogic = Logic(strings.ToUpper(strings.TrimSpace(string(q.ConditionLogic))))
	if q.ConditionLogic == "" {
		q.ConditionLogic = LogicAnd
	}
	if len(q.Conditions) > 0 {
		normalized := make(map[string]Condition, len(q.Conditions))
		for column, condition := range q.Conditions {
			condition.Operator = Operator(strings.ToUpper(strings.TrimSpace(string(condition.Operator))))
			if condition.Operator == "" {
				condition.Operator = OpEq
			}
			normalized[strings.ToLower(strings.TrimSpace(column))] = condition
		}
		q.Conditions = normalized
	}
	for i := range q.OrderBy {
		q.OrderBy[i].Column = strings.TrimSpace(q.OrderBy[i].Column)
		q.OrderBy[i].Direction = strings.ToLower(strings.TrimSpace(q.OrderBy[i].Direction))
		if q.OrderBy[i].Direction == "" {
			q.OrderBy[i].Direction = directionUp
		}
	}
}

// Validate checks the query against the schema catalog. It does not touch the
// backend.
func (q Query) Validate() error {
	if q.Operation != nil {
		if _, ok := LookupOperation(q.Operation.Name); !ok {
			return invalidf("unknown operation %q", q.Operation.Name)
		}
		return nil
	}
	switch q.Type {
	case TypeSelect, TypeCount, TypeAggregate:
	default:
		return invalidf("unknown query type %q", q.Type)
	}
	switch q.ConditionLogic {
	case LogicAnd, LogicOr, "":
	default:
		return invalidf("unknown condition logic %q", q.ConditionLogic)
	}
	table, ok := LookupTable(q.Table)
	if !ok {
		return invalidf("unknown table %q", q.Table)
	}
	if q.Limit < 0 {
		return invalidf("limit must be positive")
	}
	for _, column := range q.ConditionColumns() {
		if _, ok := table.Column(column); !ok {
			return invalidf("unknown column %q for table %s", column, table.Name)
		}
		operator := q.Conditions[column].Operator
		if _, ok := knownOperators[operator]; !ok {
			return fmt.Errorf("%w: %q on column %s", ErrUnsupportedOperator, operator, column)
		}
	}
	for _, order := range q.OrderBy {
		if order.Direction != "" && order.Direction != directionUp && order.Direction != directionDn {
			return invalidf("unknown order direction %q", order.Direction)
		}
	}
	return nil
}

// ConditionColumns returns condition keys in a stable order.
func (q Query) ConditionColumns() []string {
	columns := make([]string, 0, len(q.Conditions))
	for column := range q.Conditions {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// Disjunctive reports whether the conditions are combined with OR.
func (q Query) Disjunctive() bool {
	return strings.EqualFold(strings.TrimSpace(string(q.ConditionLogic)), string(LogicOr))
}

// Clone returns a copy whose slices and maps can be modified independently.
func (q Query) Clone() Query {
	out := q
	if q.Columns != nil {
		out.Columns = append([]string(nil), q.Columns...)
	}
	if q.Conditions != nil {
		out.Conditions = make(map[string]Condition, len(q.Conditions))
		for column, condition := range q.Conditions {
			out.Conditions[column] = condition
		}
	}
	if q.OrderBy != nil {
		out.OrderBy = append([]OrderBy(nil), q.OrderBy...)
	}
	if q.Operation != nil {
		op := *q.Operation
		if q.Operation.Params != nil {
			op.Params = make(map[string]any, len(q.Operation.Params))
			for key, value := range q.Operation.Params {
				op.Params[key] = value
			}
		}
		out.Operation = &op
	}
	return out
}

// WithCondition returns a copy of q with column set to condition, replacing any
// existing condition on that column.
func (q Query) WithCondition(column string, condition Condition) Query {
	out := q.Clone()
	if out.Conditions == nil {
		out.Conditions = map[string]Condition{}
	}
	out.Conditions[strings.ToLower(strings.TrimSpace(column))] = condition
	return out
}
