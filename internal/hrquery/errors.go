package hrquery

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuery        = errors.New("invalid query")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrUnsupportedSubquery = errors.New("unsupported subquery")
)

// BackendError marks a failure of the relational store itself, as opposed to a
// query that was rejected before reaching it.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
