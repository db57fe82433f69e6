// Package cli implements the sphinxql command-line tool.
//
// # Commands
//
// render: print the statement built from flags
//
//	sphinxql render -index products -q "red phone" -filter price:lt:500 -order price:desc -limit 10
//	SELECT * FROM products WHERE MATCH('red phone') AND price < 500 ORDER BY price DESC LIMIT 0, 10
//
// query: build the statement, run it against searchd and print JSON
//
//	sphinxql query -addr 127.0.0.1:9306 -index products -field id -field name=title -q phone -meta -pretty
//
// exec: run a raw maintenance statement on the primary
//
//	sphinxql exec FLUSH RTINDEX products
//
// # Statement Flags
//
// The statement flags accept the same syntax as the HTTP API parameters:
//
//	-index name          repeatable
//	-field alias=expr    repeatable; a bare expression is its own alias
//	-filter field:op:v   repeatable; op is eq, ne, gt, lt, ge, le, and, in or notin
//	-in/-all/-none f:a,b repeatable
//	-order field[:dir]   repeatable; dir is asc (default) or desc
//	-q term, -offset n, -limit n
//
// # Connection
//
// query and exec load the same configuration as the server (SPHINXQL_*
// variables and SPHINXQL_CONFIG_FILE). -addr, -user, -password, -timeout and
// -meta override it. -addr also drops any configured replicas.
package cli
