package sphinxql

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultOffset = 0
	defaultLimit  = 20
)

// matchEscaper backslash-escapes the characters that would terminate the MATCH('...') literal.
var matchEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Query builds a single SphinxQL SELECT statement.
//
// A Query is configured through chainable methods and rendered with Render. It is not safe
// for concurrent mutation; use one Query per logical statement.
type Query struct {
	executor Executor

	fields  *fieldSet // select list keyed by alias
	search  *string   // full-text match term, nil when unset
	filters []Filter  // WHERE conditions, ANDed in insertion order
	orders  []Order   // ORDER BY entries in insertion order
	indexes []string  // FROM list, duplicates allowed
	offset  int
	limit   int
}

// New returns an empty Query bound to executor.
func New(executor Executor) *Query {
	return &Query{
		executor: executor,
		fields:   newFieldSet(),
		offset:   defaultOffset,
		limit:    defaultLimit,
	}
}

// Executor returns the executor the query is bound to.
func (q *Query) Executor() Executor {
	return q.executor
}

// SetExecutor rebinds the query. A nil executor is ignored.
func (q *Query) SetExecutor(executor Executor) *Query {
	if executor != nil {
		q.executor = executor
	}
	return q
}

// AddIndex appends an index to the FROM list.
func (q *Query) AddIndex(name string) *Query {
	if name != "" {
		q.indexes = append(q.indexes, name)
	}
	return q
}

// RemoveIndex removes every occurrence of name from the FROM list.
func (q *Query) RemoveIndex(name string) *Query {
	kept := q.indexes[:0]
	for _, idx := range q.indexes {
		if idx != name {
			kept = append(kept, idx)
		}
	}
	q.indexes = kept
	return q
}

// Indexes returns a copy of the FROM list.
func (q *Query) Indexes() []string {
	out := make([]string, len(q.indexes))
	copy(out, q.indexes)
	return out
}

// AddField adds expr to the select list under alias, replacing any expression already
// registered for that alias. An empty alias defaults to expr. expr is emitted verbatim,
// even when empty.
func (q *Query) AddField(expr, alias string) *Query {
	if alias == "" {
		alias = expr
	}
	q.fields.set(alias, expr)
	return q
}

// AddFields calls AddField for each entry, in argument order.
func (q *Query) AddFields(fields ...FieldSpec) *Query {
	for _, f := range fields {
		q.AddField(f.Expr, f.Alias)
	}
	return q
}

// RemoveField drops the field registered under alias.
func (q *Query) RemoveField(alias string) *Query {
	q.fields.delete(alias)
	return q
}

// RemoveFields calls RemoveField for each alias.
func (q *Query) RemoveFields(aliases ...string) *Query {
	for _, alias := range aliases {
		q.RemoveField(alias)
	}
	return q
}

// Fields returns the select list in render order.
func (q *Query) Fields() []FieldSpec {
	return q.fields.specs()
}

// Search sets the full-text match term, replacing any previous one.
func (q *Query) Search(text string) *Query {
	q.search = &text
	return q
}

// SearchTerm returns the match term and whether one is set.
func (q *Query) SearchTerm() (string, bool) {
	if q.search == nil {
		return "", false
	}
	return *q.search, true
}

// Offset sets the number of matches to skip. Negative values are ignored.
func (q *Query) Offset(n int) *Query {
	if n >= 0 {
		q.offset = n
	}
	return q
}

// Limit sets the maximum number of matches returned. Values below 1 are ignored.
func (q *Query) Limit(n int) *Query {
	if n > 0 {
		q.limit = n
	}
	return q
}

// Pagination returns the current offset and limit.
func (q *Query) Pagination() (offset, limit int) {
	return q.offset, q.limit
}

// AddFilter appends a WHERE condition. Unrecognized operators are coerced to EQ.
//
// value is emitted verbatim; quote is stored on the Filter but does not alter the output.
// An empty field cannot form a condition: the query is left untouched and nil is returned,
// so callers chaining through AddFilter must check the result.
func (q *Query) AddFilter(field, value string, op Operator, quote bool) *Query {
	if !op.Valid() {
		op = EQ
	}
	if field == "" {
		return nil
	}
	q.filters = append(q.filters, Filter{
		Field:    field,
		Operator: op,
		Value:    value,
		Quote:    quote,
	})
	return q
}

// Where appends "field = value".
func (q *Query) Where(field, value string) *Query {
	return q.AddFilter(field, value, EQ, true)
}

// AddFilterIn appends IN / NOT IN conditions for values.
//
// MatchAny and MatchNone add a single clause over the whole list. MatchAll adds one
// single-value IN clause per value. Unknown modes are ignored.
func (q *Query) AddFilterIn(field string, mode MatchMode, values ...string) *Query {
	switch mode {
	case MatchAll:
		for _, v := range values {
			q.AddFilterIn(field, MatchAny, v)
		}
	case MatchAny:
		q.AddFilter(field, inList(values), IN, false)
	case MatchNone:
		q.AddFilter(field, inList(values), NotIn, false)
	}
	return q
}

// Filters returns a copy of the WHERE conditions.
func (q *Query) Filters() []Filter {
	out := make([]Filter, len(q.filters))
	copy(out, q.filters)
	return out
}

// AddOrder appends an ORDER BY entry. Neither argument is checked; an empty direction
// leaves the choice to searchd.
func (q *Query) AddOrder(field, direction string) *Query {
	q.orders = append(q.orders, Order{Field: field, Direction: direction})
	return q
}

// Orders returns a copy of the ORDER BY entries.
func (q *Query) Orders() []Order {
	out := make([]Order, len(q.orders))
	copy(out, q.orders)
	return out
}

// Render returns the statement text for the current state. It does not modify the query.
func (q *Query) Render() string {
	var sb strings.Builder

	sb.WriteString("SELECT ")
	sb.WriteString(q.buildFields())
	sb.WriteString(" ")

	sb.WriteString("FROM ")
	sb.WriteString(strings.Join(q.indexes, ","))
	sb.WriteString(" ")

	if wheres := q.buildWheres(); len(wheres) > 0 {
		sb.WriteString("WHERE ")
		sb.WriteString(strings.Join(wheres, " AND "))
		sb.WriteString(" ")
	}

	if orders := q.buildOrders(); len(orders) > 0 {
		sb.WriteString("ORDER BY ")
		sb.WriteString(strings.Join(orders, ", "))
		sb.WriteString(" ")
	}

	fmt.Fprintf(&sb, "LIMIT %d, %d", q.offset, q.limit)

	return strings.TrimRight(sb.String(), " ")
}

// String implements fmt.Stringer.
func (q *Query) String() string {
	return q.Render()
}

// Execute hands the query to its executor and returns whatever the executor returns.
func (q *Query) Execute(ctx context.Context) (*ResultSet, error) {
	if q.executor == nil {
		return nil, ErrNoExecutor
	}
	return q.executor.Query(ctx, q)
}

func (q *Query) buildFields() string {
	if q.fields.len() == 0 {
		return "*"
	}
	parts := make([]string, 0, q.fields.len())
	for _, f := range q.fields.specs() {
		parts = append(parts, fmt.Sprintf("%s AS %s", f.Expr, f.Alias))
	}
	return strings.Join(parts, ", ")
}

func (q *Query) buildWheres() []string {
	wheres := make([]string, 0, len(q.filters)+1)
	if q.search != nil {
		wheres = append(wheres, fmt.Sprintf("MATCH('%s')", matchEscaper.Replace(*q.search)))
	}
	for _, f := range q.filters {
		wheres = append(wheres, f.String())
	}
	return wheres
}

func (q *Query) buildOrders() []string {
	orders := make([]string, 0, len(q.orders))
	for _, o := range q.orders {
		orders = append(orders, o.String())
	}
	return orders
}
