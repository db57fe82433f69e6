// Package async provides safe background execution primitives.
//
// SafeGo runs a fire-and-forget task with a timeout, panic recovery and
// error logging. The API uses it to purge the result cache without holding
// the request open.
//
// Batch fans a slice out over a bounded number of goroutines and collects
// the errors. The result cache uses it to warm many statements at once:
//
//	errs := async.Batch(ctx, queries, 4, 10*time.Second, func(ctx context.Context, q *sphinxql.Query) error {
//	    _, err := results.Query(ctx, q)
//	    return err
//	})
package async
