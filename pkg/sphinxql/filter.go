package sphinxql

import (
	"fmt"
	"strings"
)

// Operator is the comparison placed between a filter's field and value.
type Operator string

// Recognized operators. AddFilter coerces anything else to EQ.
const (
	EQ    Operator = "="
	NE    Operator = "!="
	GT    Operator = ">"
	LT    Operator = "<"
	GE    Operator = ">="
	LE    Operator = "<="
	AND   Operator = "AND"
	IN    Operator = "IN"
	NotIn Operator = "NOT IN"
)

var validOperators = map[Operator]bool{
	EQ: true, NE: true, GT: true, LT: true, GE: true, LE: true,
	AND: true, IN: true, NotIn: true,
}

// Valid reports whether op is one of the recognized operators.
func (op Operator) Valid() bool {
	return validOperators[op]
}

// operatorNames maps the symbolic names accepted by ParseOperator.
var operatorNames = map[string]Operator{
	"eq":    EQ,
	"ne":    NE,
	"gt":    GT,
	"lt":    LT,
	"ge":    GE,
	"le":    LE,
	"and":   AND,
	"in":    IN,
	"notin": NotIn,
}

// ParseOperator resolves a symbolic name (eq, ne, gt, lt, ge, le, and, in, notin) or the
// operator text itself ("=", ">=", "NOT IN", ...), case-insensitively.
func ParseOperator(s string) (Operator, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if op, ok := operatorNames[key]; ok {
		return op, nil
	}
	if op := Operator(strings.ToUpper(strings.Join(strings.Fields(s), " "))); op.Valid() {
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}

// MatchMode selects how AddFilterIn expands a value list.
type MatchMode string

const (
	// MatchAny renders one "field IN (v1, v2, ...)" clause.
	MatchAny MatchMode = "any"
	// MatchAll renders one "field IN (v)" clause per value, ANDed together.
	MatchAll MatchMode = "all"
	// MatchNone renders one "field NOT IN (v1, v2, ...)" clause.
	MatchNone MatchMode = "none"
)

// ParseMatchMode resolves "any", "all" or "none", case-insensitively.
func ParseMatchMode(s string) (MatchMode, error) {
	switch m := MatchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case MatchAny, MatchAll, MatchNone:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMatchMode, s)
}

// Filter is a single WHERE condition rendered as "<Field> <Operator> <Value>".
//
// Quote records whether the caller handed over a plain literal (true) or a pre-formatted
// fragment such as a parenthesized list (false). It does not change the rendered text.
type Filter struct {
	Field    string
	Operator Operator
	Value    string
	Quote    bool
}

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %s", f.Field, f.Operator, f.Value)
}

// Order is a single ORDER BY entry. Direction is passed through as given.
type Order struct {
	Field     string
	Direction string
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s", o.Field, o.Direction)
}

// inList formats values as "(v1, v2, ...)".
func inList(values []string) string {
	return "(" + strings.Join(values, ", ") + ")"
}
