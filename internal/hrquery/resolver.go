package hrquery

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	subqueryPrefix = regexp.MustCompile(`(?is)^\s*\(?\s*select\s+emp_id\s+from\s+employees\s+where\s+(.+?)\s*\)?\s*;?\s*$`)
	firstNameLike  = regexp.MustCompile(`(?i)\bfirst_name\s+i?like\s+'%?([^'%]*)%?'`)
	lastNameLike   = regexp.MustCompile(`(?i)\blast_name\s+i?like\s+'%?([^'%]*)%?'`)
	employeeIDEq   = regexp.MustCompile(`(?i)\bemp_id\s*=\s*'?(\d+)'?`)

	parenthesisedSelect = regexp.MustCompile(`(?is)^\s*\(\s*select\s`)
)

// Resolver interprets the one subquery shape the translator tends to emit in
// place of an employee id: a name lookup on the employees table.
type Resolver struct {
	Backend Querier
}

// IsSubquery reports whether a condition value is a parenthesised
// "(SELECT ..." string. Bare values starting with "select" are literals.
func IsSubquery(value any) bool {
	text, ok := value.(string)
	if !ok {
		return false
	}
	return parenthesisedSelect.MatchString(text)
}

// Resolve returns the employee ids matched by text. The result is never nil.
func (r *Resolver) Resolve(ctx context.Context, text string) ([]int64, error) {
	match := subqueryPrefix.FindStringSubmatch(text)
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSubquery, text)
	}
	where := match[1]

	b := &builder{}
	var predicates []string
	if m := employeeIDEq.FindStringSubmatch(where); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedSubquery, text)
		}
		predicates = append(predicates, quoteIdent("emp_id")+" = "+b.bind(id))
	} else {
		if m := firstNameLike.FindStringSubmatch(where); m != nil && strings.TrimSpace(m[1]) != "" {
			predicates = append(predicates, quoteIdent("first_name")+" ILIKE "+b.bind("%"+strings.TrimSpace(m[1])+"%"))
		}
		if m := lastNameLike.FindStringSubmatch(where); m != nil && strings.TrimSpace(m[1]) != "" {
			predicates = append(predicates, quoteIdent("last_name")+" ILIKE "+b.bind("%"+strings.TrimSpace(m[1])+"%"))
		}
	}
	if len(predicates) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSubquery, text)
	}

	stmt := Statement{
		SQL: fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
			quoteIdent("emp_id"), quoteIdent(TableEmployees), strings.Join(predicates, " AND "), quoteIdent("emp_id")),
		Args: b.args,
	}
	rows, err := r.Backend.Query(ctx, stmt)
	if err != nil {
		return nil, &BackendError{Op: "resolve employee subquery", Err: err}
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		id, ok := toInt64(row["emp_id"])
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
