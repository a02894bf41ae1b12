// Package pool runs a function over independent work items with bounded
// parallelism and returns one result per item, in input order.
//
// Items that produce nothing, fail, panic, or are skipped because the context
// expired all yield a Result with OK == false. Callers merge with Collect or
// Flatten, which treat those results as contributing nothing.
package pool

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/logger"
)

// Result is the outcome of one work item. OK == false is the "no result" marker.
type Result[R any] struct {
	Value R
	OK    bool
	Err   error // set when the item failed or was skipped
}

// Func processes one item. Returning ok == false reports that the item produced
// nothing, which is not an error.
type Func[T, R any] func(ctx context.Context, item T) (value R, ok bool, err error)

// Options configures a single Map call
type Options struct {
	Workers int                // Concurrent workers (< 1 means 1)
	Name    string             // Used in log lines, e.g. "stage_a"
	Logger  *zap.SugaredLogger // Optional; defaults to the global logger
}

// Stats summarizes a Map call
type Stats struct {
	Items    int
	Produced int           // items with OK results
	Empty    int           // items that ran and found nothing
	Failed   int           // items that returned an error or panicked
	Skipped  int           // items not run because the context ended
	Duration time.Duration
}

// pulseLogger wraps zap.SugaredLogger with the Pulse opening/closing markers
type pulseLogger struct {
	*zap.SugaredLogger
}

// Starting logs an Opening (✿) event
func (l pulseLogger) Starting(msg string, keysAndValues ...interface{}) {
	l.Debugw("✿ "+msg, keysAndValues...)
}

// Closing logs a Closing (❀) event
func (l pulseLogger) Closing(msg string, keysAndValues ...interface{}) {
	l.Debugw("❀ "+msg, keysAndValues...)
}

// Map applies fn to every item using at most opts.Workers goroutines.
// The returned slice is one-to-one with items. Map never returns an error:
// per-item failures are recorded in the corresponding Result.
func Map[T, R any](ctx context.Context, items []T, fn Func[T, R], opts Options) ([]Result[R], Stats) {
	start := time.Now()
	workers := max(1, opts.Workers)
	log := pulseLogger{opts.Logger}
	if log.SugaredLogger == nil {
		log.SugaredLogger = logger.Logger
	}

	results := make([]Result[R], len(items))
	log.Starting("pool", "name", opts.Name, logger.FieldWorkers, workers, logger.FieldCount, len(items))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			results[i] = Result[R]{Err: err}
			continue
		}
		g.Go(func() error {
			results[i] = run(ctx, i, item, fn)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	stats := summarize(results)
	stats.Duration = time.Since(start)

	for i, r := range results {
		if r.Err != nil && errors.Is(r.Err, errors.ErrWorkerFailure) {
			log.Warnw("work item failed, using no result",
				"name", opts.Name,
				"item", i,
				logger.FieldError, r.Err,
			)
		}
	}
	log.Closing("pool",
		"name", opts.Name,
		logger.FieldCount, stats.Items,
		"produced", stats.Produced,
		logger.FieldFailures, stats.Failed,
		"skipped", stats.Skipped,
		logger.FieldDurationMS, stats.Duration.Milliseconds(),
	)
	return results, stats
}

// run executes fn for one item, converting errors and panics into a
// WorkerFailure for that item only.
func run[T, R any](ctx context.Context, i int, item T, fn Func[T, R]) (res Result[R]) {
	defer func() {
		if p := recover(); p != nil {
			res = Result[R]{Err: errors.NewWorkerFailure(i, errors.Newf("panic: %v", p))}
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result[R]{Err: err}
	}

	v, ok, err := fn(ctx, item)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return Result[R]{Err: err}
		}
		return Result[R]{Err: errors.NewWorkerFailure(i, err)}
	}
	if !ok {
		return Result[R]{}
	}
	return Result[R]{Value: v, OK: true}
}

func summarize[R any](results []Result[R]) Stats {
	s := Stats{Items: len(results)}
	for _, r := range results {
		switch {
		case r.OK:
			s.Produced++
		case r.Err == nil:
			s.Empty++
		case errors.Is(r.Err, errors.ErrWorkerFailure):
			s.Failed++
		default:
			s.Skipped++
		}
	}
	return s
}

// Collect returns the values of OK results in input order. When every result
// is "no result" the returned slice is empty but non-nil.
func Collect[R any](results []Result[R]) []R {
	out := make([]R, 0, len(results))
	for _, r := range results {
		if r.OK {
			out = append(out, r.Value)
		}
	}
	return out
}

// Flatten concatenates the slices held by OK results in input order
func Flatten[R any](results []Result[[]R]) []R {
	out := make([]R, 0)
	for _, r := range results {
		if r.OK {
			out = append(out, r.Value...)
		}
	}
	return out
}

// AllocateWorkers splits total workers between concurrently running tasks,
// giving each at least one.
func AllocateWorkers(total, tasks int) int {
	if tasks < 1 {
		tasks = 1
	}
	return max(1, total/tasks)
}

// Interrupted reports whether any item was skipped because the context ended
func (s Stats) Interrupted() bool {
	return s.Skipped > 0
}
