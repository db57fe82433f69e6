package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SafeGo runs fn in a goroutine bounded by timeout. Panics are recovered and
// errors are logged to logger instead of crashing the process.
//
// Callers inside an HTTP handler should detach from the request context
// first, since it is canceled as soon as the handler returns:
//
//	async.SafeGo(context.WithoutCancel(r.Context()), logger, 30*time.Second, "cache purge", func(ctx context.Context) error {
//	    return results.Purge(ctx)
//	})
func SafeGo(parentCtx context.Context, logger *logrus.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		log := logger.WithField("task", taskName)
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("Background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			log.WithError(err).Error("Background task failed")
		}
	}()
}

// Batch calls fn for every item with at most workers running at once and
// waits for all of them. Each call gets its own timeout. Errors and
// recovered panics are returned in item order. When ctx is done before every
// item has started, its error takes the place of the first item that was
// skipped.
func Batch[T any](ctx context.Context, items []T, workers int, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)

	slots := make([]error, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			slots[i] = err
			break
		}

		i, item := i, item
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					slots[i] = fmt.Errorf("panic: %v", r)
				}
			}()

			taskCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			slots[i] = fn(taskCtx, item)
			return nil
		})
	}
	g.Wait()

	var errs []error
	for _, err := range slots {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
