package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/logger"
	"github.com/teranos/aisguard/pulse/pool"
)

// stageResult is what a stage goroutine hands back through its channel
type stageResult[R any] struct {
	value R
	stats pool.Stats
	err   error
}

// pending is a launched stage awaiting its join
type pending[R any] struct {
	ch      chan stageResult[R] // buffered: a late stage never blocks on send
	ctx     context.Context
	cancel  context.CancelFunc
	start   time.Time
	timeout time.Duration
}

// launch starts fn on its own goroutine under a context bounded by timeout.
// A zero timeout leaves the stage bounded only by ctx.
func launch[R any](ctx context.Context, timeout time.Duration, fn func(context.Context) stageResult[R]) *pending[R] {
	p := &pending[R]{
		ch:      make(chan stageResult[R], 1),
		start:   time.Now(),
		timeout: timeout,
	}
	if timeout > 0 {
		p.ctx, p.cancel = context.WithTimeout(ctx, timeout)
	} else {
		p.ctx, p.cancel = context.WithCancel(ctx)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.ch <- stageResult[R]{err: errors.Newf("stage panicked: %v", r)}
			}
		}()
		p.ch <- fn(p.ctx)
	}()
	return p
}

// join waits for a stage until it reports or its deadline passes, then
// cancels it. Anything other than a clean, complete result is replaced by
// empty, so a late or broken stage can never leak partial tables.
func join[R any](parent context.Context, p *pending[R], name string, empty R, log *zap.SugaredLogger) (R, StageOutcome) {
	defer p.cancel()

	var res stageResult[R]
	got := false
	select {
	case res = <-p.ch:
		got = true
	case <-p.ctx.Done():
		// A stage that reported before its deadline may only be joined after
		// it, when both cases are ready
		select {
		case res = <-p.ch:
			got = true
		default:
		}
	}

	out := StageOutcome{
		Name:     name,
		Status:   StatusOK,
		Duration: time.Since(p.start),
		Stats:    res.stats,
	}
	log = logger.FromContext(parent, log)

	switch {
	case parent.Err() != nil:
		out.Status = StatusFailed
		out.Err = parent.Err()
		return empty, out

	case got && res.err != nil:
		out.Status = StatusFailed
		out.Err = res.err
		log.Errorw("stage failed, continuing with empty result",
			logger.FieldStage, name,
			logger.FieldError, res.err,
		)
		return empty, out

	case !got || (p.ctx.Err() != nil && res.stats.Interrupted()):
		out.Status = StatusDegraded
		out.Err = errors.NewStageTimeout(name, p.timeout.String())
		log.Warnw("stage timed out, continuing with empty result",
			logger.FieldStage, name,
			logger.FieldTimeout, p.timeout.String(),
			logger.FieldError, out.Err,
		)
		return empty, out
	}

	if res.stats.Failed > 0 {
		log.Warnw("stage completed with failed work items",
			logger.FieldStage, name,
			logger.FieldFailures, res.stats.Failed,
		)
	}
	if res.stats.Produced == 0 {
		log.Debugw("stage produced no results", logger.FieldStage, name)
	}
	return res.value, out
}
