// Package sphinxql builds SphinxQL search statements with a fluent API.
//
// # Overview
//
// A Query accumulates the pieces of a single statement shape:
//
//	SELECT <fields|*> FROM <indexes> [WHERE <cond> [AND <cond>]*] [ORDER BY <field> <dir>[, ...]] LIMIT <offset>, <limit>
//
// and renders it deterministically with Render. The Query is bound to an Executor at
// construction; Execute hands the configured Query to it.
//
// # Usage Example
//
//	q := sphinxql.New(client).
//		AddIndex("products").
//		AddField("id", "").
//		AddField("WEIGHT()", "relevance").
//		Search("red shoes").
//		AddFilter("price", "100", sphinxql.LT, true).
//		AddFilterIn("tag_ids", sphinxql.MatchAny, "3", "7").
//		AddOrder("relevance", "DESC").
//		Limit(10)
//
//	stmt := q.Render()
//	// SELECT id AS id, WEIGHT() AS relevance FROM products WHERE MATCH('red shoes') AND price < 100 AND tag_ids IN (3, 7) ORDER BY relevance DESC LIMIT 0, 10
//
//	rs, err := q.Execute(ctx)
//
// # Input Handling
//
// Mutators never fail loudly. An empty index name, a negative offset or a non-positive limit is
// ignored and the receiver is returned, so chains keep going. Field expressions and order entries
// are taken as given, empty or not. AddFilter is the exception: an empty field name yields a nil
// *Query.
//
// Only the match term is escaped. Field expressions, index names, filter values and order
// directions are emitted verbatim and must be pre-formatted by the caller.
//
// # Related Packages
//
//   - pkg/client: Executor that talks to searchd over the MySQL protocol
//   - pkg/cache: Executor decorator caching result sets
package sphinxql
