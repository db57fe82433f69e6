package cli

import (
	"flag"
	"strings"

	"github.com/platinummonkey/sphinxql/pkg/sphinxql"
)

// stringList is a repeatable string flag
type stringList []string

func (s *stringList) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// builderFlags holds the statement flags shared by render and query. They
// mirror the HTTP search parameters.
type builderFlags struct {
	fs *flag.FlagSet

	indexes stringList
	fields  stringList
	filters stringList
	in      stringList
	all     stringList
	none    stringList
	orders  stringList
	search  string
	offset  int
	limit   int
}

func registerBuilderFlags(fs *flag.FlagSet) *builderFlags {
	b := &builderFlags{fs: fs}

	fs.Var(&b.indexes, "index", "Index to search (repeatable)")
	fs.Var(&b.fields, "field", "Select expression, alias=expr or expr (repeatable)")
	fs.Var(&b.filters, "filter", "Filter field:op:value, op one of eq,ne,gt,lt,ge,le,and,in,notin (repeatable)")
	fs.Var(&b.in, "in", "Match any value, field:v1,v2 (repeatable)")
	fs.Var(&b.all, "all", "Match every value, field:v1,v2 (repeatable)")
	fs.Var(&b.none, "none", "Match no value, field:v1,v2 (repeatable)")
	fs.Var(&b.orders, "order", "Sort field:asc|desc (repeatable)")
	fs.StringVar(&b.search, "q", "", "Full-text match term")
	fs.IntVar(&b.offset, "offset", 0, "Result offset")
	fs.IntVar(&b.limit, "limit", 20, "Maximum rows")

	return b
}

// params converts parsed flags; q, offset and limit are only set when they
// were given on the command line.
func (b *builderFlags) params() sphinxql.Params {
	p := sphinxql.Params{
		Indexes: b.indexes,
		Fields:  b.fields,
		Filters: b.filters,
		In:      b.in,
		All:     b.all,
		None:    b.none,
		Orders:  b.orders,
	}

	b.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "q":
			p.Search = &b.search
		case "offset":
			p.Offset = &b.offset
		case "limit":
			p.Limit = &b.limit
		}
	})
	return p
}

// build returns a query bound to executor, configured from the flags
func (b *builderFlags) build(executor sphinxql.Executor) (*sphinxql.Query, error) {
	q := sphinxql.New(executor)
	if err := b.params().Apply(q); err != nil {
		return nil, err
	}
	return q, nil
}
