package hrquery

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Statement is a parameterised SQL statement. Placeholders use the $N form,
// which both Postgres and DuckDB accept.
type Statement struct {
	SQL  string
	Args []any
}

// Scope restricts a query to rows owned by one employee. The zero value is
// unrestricted.
type Scope struct {
	EmployeeID *int64
}

func (s Scope) Restricted() bool {
	return s.EmployeeID != nil
}

// DateNormalizer canonicalises free-form date strings to YYYY-MM-DD.
type DateNormalizer interface {
	Normalize(value string) string
	NormalizeExact(value string) string
}

type Compiler struct {
	Dates DateNormalizer
}

var (
	aggregatePattern = regexp.MustCompile(`(?i)^(COUNT|SUM|AVG|MIN|MAX)\s*\(\s*(DISTINCT\s+)?(\*|[a-z_][a-z0-9_]*)\s*\)(?:\s+(?:AS\s+)?([a-z_][a-z0-9_]*))?$`)
	betweenSplit     = regexp.MustCompile(`(?i)\s+AND\s+`)
)

type projection struct {
	sql       string
	output    string
	aggregate bool
	function  string
	column    string
	distinct  bool
}

func (p projection) signature() string {
	if !p.aggregate {
		return p.column
	}
	distinct := ""
	if p.distinct {
		distinct = "DISTINCT "
	}
	return p.function + "(" + distinct + p.column + ")"
}

// Compile builds the generic filtered select for q. Conditions are combined
// with q.ConditionLogic and the scope predicate is ANDed around the group.
func (c Compiler) Compile(q Query, scope Scope) (Statement, error) {
	if err := q.Validate(); err != nil {
		return Statement{}, err
	}
	if q.Operation != nil {
		return Statement{}, invalidf("operation %q has no generic form without expansion", q.Operation.Name)
	}
	table, _ := LookupTable(q.Table)

	projections, err := parseProjections(table, q)
	if err != nil {
		return Statement{}, err
	}

	b := &builder{}
	selectList := make([]string, 0, len(projections))
	var groupBy []string
	hasAggregate := false
	for _, p := range projections {
		selectList = append(selectList, p.sql)
		if p.aggregate {
			hasAggregate = true
		}
	}
	if hasAggregate {
		for _, p := range projections {
			if !p.aggregate {
				groupBy = append(groupBy, quoteIdent(p.column))
			}
		}
	}

	var sql strings.Builder
	sql.WriteString("SELECT ")
	sql.WriteString(strings.Join(selectList, ", "))
	sql.WriteString(" FROM ")
	sql.WriteString(quoteIdent(table.Name))

	where, err := c.wherePredicates(b, table, q, scope)
	if err != nil {
		return Statement{}, err
	}
	if where != "" {
		sql.WriteString(" WHERE ")
		sql.WriteString(where)
	}
	if len(groupBy) > 0 {
		sql.WriteString(" GROUP BY ")
		sql.WriteString(strings.Join(groupBy, ", "))
	}
	if len(q.OrderBy) > 0 {
		terms := make([]string, 0, len(q.OrderBy))
		for _, order := range q.OrderBy {
			expr, err := orderExpression(table, projections, order.Column)
			if err != nil {
				return Statement{}, err
			}
			if order.Direction == directionDn {
				expr += " DESC"
			} else {
				expr += " ASC"
			}
			terms = append(terms, expr)
		}
		sql.WriteString(" ORDER BY ")
		sql.WriteString(strings.Join(terms, ", "))
	}
	if q.Limit > 0 {
		sql.WriteString(" LIMIT ")
		sql.WriteString(strconv.Itoa(q.Limit))
	}
	return Statement{SQL: sql.String(), Args: b.args}, nil
}

func parseProjections(table Table, q Query) ([]projection, error) {
	columns := q.Columns
	if len(columns) == 0 {
		if q.Type == TypeCount {
			return []projection{countStar("count")}, nil
		}
		if q.Type == TypeAggregate {
			return nil, invalidf("aggregate query on %s has no columns", table.Name)
		}
		columns = table.ColumnNames()
	}

	out := make([]projection, 0, len(columns))
	seen := map[string]struct{}{}
	plainOnly := true
	for _, raw := range columns {
		raw = strings.TrimSpace(raw)
		if raw == "*" {
			for _, name := range table.ColumnNames() {
				out = append(out, plainProjection(name))
			}
			continue
		}
		p, err := parseProjection(table, raw)
		if err != nil {
			return nil, err
		}
		if p.aggregate {
			plainOnly = false
		}
		out = append(out, p)
	}
	if q.Type == TypeCount && plainOnly {
		out = append(out, countStar("count"))
	}
	for _, p := range out {
		if _, dup := seen[p.output]; dup {
			return nil, invalidf("duplicate output column %q", p.output)
		}
		seen[p.output] = struct{}{}
	}
	return out, nil
}

func parseProjection(table Table, raw string) (projection, error) {
	if match := aggregatePattern.FindStringSubmatch(raw); match != nil {
		function := strings.ToUpper(match[1])
		distinct := match[2] != ""
		column := strings.ToLower(match[3])
		alias := strings.ToLower(match[4])
		if column == "*" {
			if function != "COUNT" || distinct {
				return projection{}, invalidf("%s(*) is not supported", function)
			}
			if alias == "" {
				alias = "count"
			}
			return countStar(alias), nil
		}
		col, ok := table.Column(column)
		if !ok {
			return projection{}, invalidf("unknown column %q for table %s", column, table.Name)
		}
		if (function == "SUM" || function == "AVG") && col.Kind != KindInteger && col.Kind != KindNumeric {
			return projection{}, invalidf("%s requires a numeric column, got %s", function, col.Name)
		}
		if alias == "" {
			alias = strings.ToLower(function) + "_" + col.Name
		}
		inner := quoteIdent(col.Name)
		if distinct {
			inner = "DISTINCT " + inner
		}
		return projection{
			sql:       fmt.Sprintf("%s(%s) AS %s", function, inner, quoteIdent(alias)),
			output:    alias,
			aggregate: true,
			function:  function,
			column:    col.Name,
			distinct:  distinct,
		}, nil
	}
	col, ok := table.Column(raw)
	if !ok {
		return projection{}, invalidf("unknown column %q for table %s", raw, table.Name)
	}
	return plainProjection(col.Name), nil
}

func plainProjection(name string) projection {
	return projection{sql: quoteIdent(name), output: name, column: name}
}

func countStar(alias string) projection {
	return projection{
		sql:       "COUNT(*) AS " + quoteIdent(alias),
		output:    alias,
		aggregate: true,
		function:  "COUNT",
		column:    "*",
	}
}

func orderExpression(table Table, projections []projection, column string) (string, error) {
	trimmed := strings.TrimSpace(column)
	lower := strings.ToLower(trimmed)
	for _, p := range projections {
		if p.output == lower && p.aggregate {
			return quoteIdent(p.output), nil
		}
	}
	if col, ok := table.Column(lower); ok {
		return quoteIdent(col.Name), nil
	}
	if aggregatePattern.MatchString(trimmed) {
		p, err := parseProjection(table, trimmed)
		if err != nil {
			return "", err
		}
		for _, existing := range projections {
			if existing.aggregate && existing.signature() == p.signature() {
				return quoteIdent(existing.output), nil
			}
		}
		// order by an aggregate that is not projected
		return strings.TrimSuffix(p.sql, " AS "+quoteIdent(p.output)), nil
	}
	return "", invalidf("unknown order column %q", column)
}

type builder struct {
	args []any
}

func (b *builder) bind(value any) string {
	b.args = append(b.args, value)
	return "$" + strconv.Itoa(len(b.args))
}

func (c Compiler) wherePredicates(b *builder, table Table, q Query, scope Scope) (string, error) {
	predicates := make([]string, 0, len(q.Conditions))
	for _, name := range q.ConditionColumns() {
		col, _ := table.Column(name)
		predicate, err := c.predicate(b, col, q.Conditions[name])
		if err != nil {
			return "", err
		}
		predicates = append(predicates, predicate)
	}

	joiner := " AND "
	if q.ConditionLogic == LogicOr {
		joiner = " OR "
	}
	group := strings.Join(predicates, joiner)

	if !scope.Restricted() || !table.HasEmployeeID() {
		return group, nil
	}
	scoped := quoteIdent(EmployeeIDColumn) + " = " + b.bind(*scope.EmployeeID)
	if group == "" {
		return scoped, nil
	}
	return "(" + group + ") AND " + scoped, nil
}

func (c Compiler) predicate(b *builder, col Column, condition Condition) (string, error) {
	ident := quoteIdent(col.Name)
	switch condition.Operator {
	case OpEq:
		if condition.Value == nil {
			return ident + " IS NULL", nil
		}
		if list, ok := condition.Value.([]any); ok {
			return c.inPredicate(b, col, list)
		}
		return c.comparison(b, col, "=", condition.Value)
	case OpNotEq, OpNotEqAlt:
		if condition.Value == nil {
			return ident + " IS NOT NULL", nil
		}
		return c.comparison(b, col, "<>", condition.Value)
	case OpGt, OpGte, OpLt, OpLte:
		return c.comparison(b, col, string(condition.Operator), condition.Value)
	case OpIn:
		list, ok := condition.Value.([]any)
		if !ok {
			list = []any{condition.Value}
		}
		return c.inPredicate(b, col, list)
	case OpLike:
		if condition.Value == nil {
			return "", invalidf("LIKE on %s needs a value", col.Name)
		}
		pattern := fmt.Sprint(condition.Value)
		if !strings.ContainsAny(pattern, "%_") {
			pattern = "%" + pattern + "%"
		}
		target := ident
		if col.Kind != KindText {
			target = "CAST(" + ident + " AS TEXT)"
		}
		return target + " ILIKE " + b.bind(pattern), nil
	case OpBetween:
		start, end, err := c.betweenBounds(col, condition.Value)
		if err != nil {
			return "", err
		}
		return ident + " BETWEEN " + c.placeholder(b, col, start) + " AND " + c.placeholder(b, col, end), nil
	default:
		return "", fmt.Errorf("%w: %q on column %s", ErrUnsupportedOperator, condition.Operator, col.Name)
	}
}

func (c Compiler) comparison(b *builder, col Column, op string, value any) (string, error) {
	coerced, err := c.coerce(col, value)
	if err != nil {
		return "", err
	}
	return quoteIdent(col.Name) + " " + op + " " + c.placeholder(b, col, coerced), nil
}

func (c Compiler) inPredicate(b *builder, col Column, values []any) (string, error) {
	if len(values) == 0 {
		return "FALSE", nil
	}
	placeholders := make([]string, 0, len(values))
	for _, value := range values {
		coerced, err := c.coerce(col, value)
		if err != nil {
			return "", err
		}
		placeholders = append(placeholders, c.placeholder(b, col, coerced))
	}
	return quoteIdent(col.Name) + " IN (" + strings.Join(placeholders, ", ") + ")", nil
}

func (c Compiler) placeholder(b *builder, col Column, value any) string {
	switch col.Kind {
	case KindDate:
		return "CAST(" + b.bind(value) + " AS DATE)"
	case KindTime:
		return "CAST(" + b.bind(value) + " AS TIME)"
	default:
		return b.bind(value)
	}
}

// betweenBounds splits a range value into two coerced endpoints ordered so
// that start <= end.
func (c Compiler) betweenBounds(col Column, value any) (any, any, error) {
	var tokens []string
	switch typed := value.(type) {
	case string:
		for _, token := range betweenSplit.Split(strings.TrimSpace(typed), -1) {
			tokens = append(tokens, strings.Trim(strings.TrimSpace(token), `'"`))
		}
	case []any:
		for _, item := range typed {
			tokens = append(tokens, strings.TrimSpace(fmt.Sprint(item)))
		}
	default:
		return nil, nil, invalidf("BETWEEN on %s needs \"A AND B\"", col.Name)
	}
	if len(tokens) != 2 || tokens[0] == "" || tokens[1] == "" {
		return nil, nil, invalidf("BETWEEN on %s needs exactly two bounds, got %d", col.Name, len(tokens))
	}
	start, err := c.coerce(col, tokens[0])
	if err != nil {
		return nil, nil, err
	}
	end, err := c.coerce(col, tokens[1])
	if err != nil {
		return nil, nil, err
	}
	if greater(start, end) {
		start, end = end, start
	}
	return start, end, nil
}

func greater(a, b any) bool {
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return x > y
		}
	case float64:
		if y, ok := b.(float64); ok {
			return x > y
		}
	case string:
		if y, ok := b.(string); ok {
			return x > y
		}
	}
	return false
}

func (c Compiler) coerce(col Column, value any) (any, error) {
	switch col.Kind {
	case KindInteger:
		n, ok := toInt64(value)
		if !ok {
			return nil, invalidf("column %s expects an integer, got %v", col.Name, value)
		}
		return n, nil
	case KindNumeric:
		f, ok := toFloat64(value)
		if !ok {
			return nil, invalidf("column %s expects a number, got %v", col.Name, value)
		}
		return f, nil
	case KindDate:
		text := strings.TrimSpace(fmt.Sprint(value))
		if c.Dates == nil {
			return text, nil
		}
		if col.ExactDate {
			return c.Dates.NormalizeExact(text), nil
		}
		return c.Dates.Normalize(text), nil
	default:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return fmt.Sprint(value), nil
	}
}

func toInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case float64:
		if typed != math.Trunc(typed) {
			return 0, false
		}
		return int64(typed), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func toFloat64(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(typed), ",", ""), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
