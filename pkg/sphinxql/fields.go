package sphinxql

// FieldSpec is a select-list entry rendered as "<Expr> AS <Alias>".
type FieldSpec struct {
	Alias string
	Expr  string
}

// fieldSet is an insertion-ordered map of alias to expression.
// Overwriting an alias keeps its original position.
type fieldSet struct {
	order []string
	exprs map[string]string
}

func newFieldSet() *fieldSet {
	return &fieldSet{exprs: make(map[string]string)}
}

func (s *fieldSet) set(alias, expr string) {
	if _, ok := s.exprs[alias]; !ok {
		s.order = append(s.order, alias)
	}
	s.exprs[alias] = expr
}

func (s *fieldSet) delete(alias string) {
	if _, ok := s.exprs[alias]; !ok {
		return
	}
	delete(s.exprs, alias)
	for i, a := range s.order {
		if a == alias {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *fieldSet) len() int {
	return len(s.order)
}

// specs returns the fields in insertion order.
func (s *fieldSet) specs() []FieldSpec {
	out := make([]FieldSpec, 0, len(s.order))
	for _, alias := range s.order {
		out = append(out, FieldSpec{Alias: alias, Expr: s.exprs[alias]})
	}
	return out
}
