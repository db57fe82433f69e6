package sphinxql

import (
	"context"
	"errors"
)

var (
	// ErrNoExecutor is returned by Execute when the Query was built without an Executor.
	ErrNoExecutor = errors.New("sphinxql: no executor bound to query")
	// ErrUnknownOperator is returned by ParseOperator.
	ErrUnknownOperator = errors.New("sphinxql: unknown operator")
	// ErrUnknownMatchMode is returned by ParseMatchMode.
	ErrUnknownMatchMode = errors.New("sphinxql: unknown match mode")
)

// Executor sends a configured Query to the search engine.
// Implementations obtain the statement text through q.Render.
type Executor interface {
	Query(ctx context.Context, q *Query) (*ResultSet, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, q *Query) (*ResultSet, error)

// Query calls f(ctx, q).
func (f ExecutorFunc) Query(ctx context.Context, q *Query) (*ResultSet, error) {
	return f(ctx, q)
}

// Row is a single result row keyed by column name.
type Row map[string]interface{}

// ResultSet holds the rows returned for one statement.
type ResultSet struct {
	Columns []string          `json:"columns"`
	Rows    []Row             `json:"rows"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}
