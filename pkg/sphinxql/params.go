package sphinxql

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParam is wrapped by every Params parsing error.
var ErrInvalidParam = errors.New("sphinxql: invalid parameter")

// Params is the flat, string-typed form of a query used by URL query strings
// and command-line flags. Each list entry is parsed by the matching Parse*
// function.
type Params struct {
	Indexes []string
	Search  *string
	Fields  []string // "alias=expr" or "expr"
	Filters []string // "field:op:value"
	In      []string // "field:v1,v2"
	All     []string
	None    []string
	Orders  []string // "field" or "field:asc|desc"
	Offset  *int
	Limit   *int
}

// Apply validates every entry and then configures q. Nothing is applied when
// an entry is malformed.
func (p Params) Apply(q *Query) error {
	if p.Offset != nil && *p.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", ErrInvalidParam)
	}
	if p.Limit != nil && *p.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidParam)
	}

	fields := make([]FieldSpec, 0, len(p.Fields))
	for _, s := range p.Fields {
		f, err := ParseFieldParam(s)
		if err != nil {
			return err
		}
		fields = append(fields, f)
	}

	filters := make([]Filter, 0, len(p.Filters))
	for _, s := range p.Filters {
		f, err := ParseFilterParam(s)
		if err != nil {
			return err
		}
		filters = append(filters, f)
	}

	type inFilter struct {
		field  string
		mode   MatchMode
		values []string
	}
	var ins []inFilter
	groups := []struct {
		mode    MatchMode
		entries []string
	}{{MatchAny, p.In}, {MatchAll, p.All}, {MatchNone, p.None}}
	for _, g := range groups {
		for _, s := range g.entries {
			field, values, err := ParseInParam(s)
			if err != nil {
				return err
			}
			ins = append(ins, inFilter{field, g.mode, values})
		}
	}

	orders := make([]Order, 0, len(p.Orders))
	for _, s := range p.Orders {
		o, err := ParseOrderParam(s)
		if err != nil {
			return err
		}
		orders = append(orders, o)
	}

	for _, idx := range p.Indexes {
		q.AddIndex(strings.TrimSpace(idx))
	}
	q.AddFields(fields...)
	if p.Search != nil {
		q.Search(*p.Search)
	}
	for _, f := range filters {
		q.AddFilter(f.Field, f.Value, f.Operator, f.Quote)
	}
	for _, in := range ins {
		q.AddFilterIn(in.field, in.mode, in.values...)
	}
	for _, o := range orders {
		q.AddOrder(o.Field, o.Direction)
	}
	if p.Offset != nil {
		q.Offset(*p.Offset)
	}
	if p.Limit != nil {
		q.Limit(*p.Limit)
	}
	return nil
}

// ParseFieldParam parses "alias=expr" or a bare expression. The text before
// the first "=" is only taken as an alias when it is a plain identifier, so
// expressions such as "IF(a=1,1,0)" pass through whole.
func ParseFieldParam(s string) (FieldSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FieldSpec{}, fmt.Errorf("%w: empty field", ErrInvalidParam)
	}

	if alias, expr, ok := strings.Cut(s, "="); ok && isIdentifier(strings.TrimSpace(alias)) {
		alias, expr = strings.TrimSpace(alias), strings.TrimSpace(expr)
		if expr == "" {
			return FieldSpec{}, fmt.Errorf("%w: field %q has no expression", ErrInvalidParam, s)
		}
		return FieldSpec{Alias: alias, Expr: expr}, nil
	}
	return FieldSpec{Alias: s, Expr: s}, nil
}

// ParseFilterParam parses "field:op:value". op is anything ParseOperator
// accepts. For in and notin a bare "v1,v2" value is wrapped as "(v1, v2)".
func ParseFilterParam(s string) (Filter, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Filter{}, fmt.Errorf("%w: filter %q must be field:op:value", ErrInvalidParam, s)
	}

	field := strings.TrimSpace(parts[0])
	if field == "" {
		return Filter{}, fmt.Errorf("%w: filter %q has no field", ErrInvalidParam, s)
	}

	op, err := ParseOperator(parts[1])
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}

	value := strings.TrimSpace(parts[2])
	if value == "" {
		return Filter{}, fmt.Errorf("%w: filter %q has no value", ErrInvalidParam, s)
	}
	if (op == IN || op == NotIn) && !strings.HasPrefix(value, "(") {
		value = inList(splitList(value))
	}

	return Filter{Field: field, Operator: op, Value: value}, nil
}

// ParseInParam parses "field:v1,v2,..." for the any, all and none lists.
func ParseInParam(s string) (string, []string, error) {
	field, list, ok := strings.Cut(s, ":")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return "", nil, fmt.Errorf("%w: %q must be field:v1,v2", ErrInvalidParam, s)
	}

	values := splitList(list)
	if len(values) == 0 {
		return "", nil, fmt.Errorf("%w: %q has no values", ErrInvalidParam, s)
	}
	return field, values, nil
}

// ParseOrderParam parses "field" or "field:dir" with dir asc or desc. The
// direction defaults to ASC and is upper-cased.
func ParseOrderParam(s string) (Order, error) {
	field, dir, _ := strings.Cut(s, ":")
	field = strings.TrimSpace(field)
	if field == "" {
		return Order{}, fmt.Errorf("%w: order %q has no field", ErrInvalidParam, s)
	}

	dir = strings.ToUpper(strings.TrimSpace(dir))
	switch dir {
	case "":
		dir = "ASC"
	case "ASC", "DESC":
	default:
		return Order{}, fmt.Errorf("%w: order direction %q must be asc or desc", ErrInvalidParam, dir)
	}
	return Order{Field: field, Direction: dir}, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
