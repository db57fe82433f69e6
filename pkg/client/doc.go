// Package client executes sphinxql builders against a Sphinx or Manticore
// searchd over its MySQL protocol listener.
//
// ConnectionManager keeps one primary handle and a set of replicas. Reads
// rotate across replicas and fall back to the primary when none are left;
// a cron-driven monitor takes replicas that stop answering pings out of
// rotation and restores them once they answer again.
//
// Client implements sphinxql.Executor:
//
//	cm, err := client.NewConnectionManager(client.ConnectionConfig{
//		PrimaryAddr: "127.0.0.1:9306",
//		MaxConns:    10,
//		Timeout:     5 * time.Second,
//	}, logger)
//	if err != nil {
//		return err
//	}
//	c := client.New(cm, logger, metrics).WithMeta(true)
//
//	rs, err := sphinxql.New(c).AddIndex("products").Search("phone").Execute(ctx)
//
// Rows are returned as maps keyed by column name. The MySQL text protocol
// delivers most values as bytes, which are converted to strings; NULL is nil.
// Each statement is traced with OpenTelemetry and counted in the
// sphinxql_queries_total metric under the first index name.
package client
