// Package worker runs handler goroutines against a queue: it fetches
// jobs through the atomic next-job selection, executes the registered
// handler, and finishes or retries through the transactional
// procedures. Lock renewal and stall detection are deliberately not
// here; a separate watcher owns reclaiming lost jobs.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/backoff"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
	"github.com/xraph/conveyor/queue"
)

// Source is the queue surface a worker needs. *queue.Queue satisfies it.
type Source interface {
	Name() string
	FetchNext(ctx context.Context, opts job.FinishOpts) (*queue.FinishResult, error)
	MoveToCompleted(ctx context.Context, jobID, returnValue string, opts job.FinishOpts, fetchNext bool) (*queue.FinishResult, error)
	MoveToFailed(ctx context.Context, jobID, failedReason string, opts job.FinishOpts, fetchNext bool) (*queue.FinishResult, error)
	RetryJob(ctx context.Context, jobID, token string, lifo bool) error
}

var _ Source = (*queue.Queue)(nil)

// Handler processes one job and returns its result value. A nil error
// finishes the job as completed; a non-nil error retries it while the
// attempt budget lasts, then finishes it as failed.
type Handler func(ctx context.Context, j *job.Job) (string, error)

// Option configures a Worker.
type Option func(*Worker)

// WithConcurrency sets the number of processing goroutines.
func WithConcurrency(n int) Option {
	return func(w *Worker) { w.concurrency = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithFinishOpts sets the finishing options template (attempt budget,
// retention, lock duration, limiter). Token is per-goroutine and
// overwritten.
func WithFinishOpts(opts job.FinishOpts) Option {
	return func(w *Worker) { w.opts = opts }
}

// WithIdleBackoff sets the strategy for spacing polls of an empty queue.
func WithIdleBackoff(s backoff.Strategy) Option {
	return func(w *Worker) { w.idle = s }
}

// WithPace caps the local dequeue rate. This complements the store-side
// limiter: the store enforces the window, pacing avoids hammering it.
func WithPace(perSecond float64, burst int) Option {
	return func(w *Worker) {
		w.pace = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRegisterer registers the worker's Prometheus metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(w *Worker) { w.metrics = newWorkerMetrics(reg, w.source.Name()) }
}

// Worker drives handler execution for one queue.
type Worker struct {
	source      Source
	handler     Handler
	concurrency int
	logger      *slog.Logger
	workerID    id.ID
	opts        job.FinishOpts
	idle        backoff.Strategy
	pace        *rate.Limiter
	metrics     *workerMetrics
}

// New creates a Worker. Call Run to start processing.
func New(source Source, handler Handler, opts ...Option) *Worker {
	w := &Worker{
		source:      source,
		handler:     handler,
		concurrency: 10,
		logger:      slog.Default(),
		workerID:    id.New(id.PrefixWorker),
		opts: job.FinishOpts{
			Attempts:     1,
			LockDuration: 30_000,
		},
		idle: &backoff.Exponential{
			Initial: 250 * time.Millisecond,
			Max:     5 * time.Second,
			Jitter:  true,
		},
	}
	for _, o := range opts {
		o(w)
	}
	if w.metrics == nil {
		w.metrics = newWorkerMetrics(nil, source.Name())
	}
	return w
}

// ID returns the worker's unique identifier.
func (w *Worker) ID() id.ID { return w.workerID }

// Run processes jobs until ctx is cancelled. It returns the context's
// error once every goroutine has drained.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker", w.workerID.String(),
		"queue", w.source.Name(),
		"concurrency", w.concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error { return w.loop(ctx) })
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context) error {
	opts := w.opts
	opts.Token = id.New(id.PrefixToken).String()

	var current *job.Job
	idleAttempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if current == nil {
			if w.pace != nil {
				if err := w.pace.Wait(ctx); err != nil {
					return err
				}
			}
			res, err := w.source.FetchNext(ctx, opts)
			if err != nil {
				w.logger.Warn("fetch failed", "error", err)
				idleAttempt++
				if err := sleep(ctx, w.idle.Delay(idleAttempt)); err != nil {
					return err
				}
				continue
			}
			next, wait := w.interpret(res)
			current = next
			if current != nil {
				idleAttempt = 0
				continue
			}
			if wait == 0 {
				idleAttempt++
				wait = w.idle.Delay(idleAttempt)
			}
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		current = w.process(ctx, current, opts)
	}
}

// process executes the handler and finishes or retries the job,
// returning the next job when the finish handed one back.
func (w *Worker) process(ctx context.Context, j *job.Job, opts job.FinishOpts) *job.Job {
	start := time.Now()
	result, handlerErr := w.handler(ctx, j)
	w.metrics.observeDuration(time.Since(start))

	var (
		res     *queue.FinishResult
		err     error
		outcome string
	)
	switch {
	case handlerErr == nil:
		outcome = "completed"
		res, err = w.source.MoveToCompleted(ctx, j.ID, result, opts, true)

	case j.AttemptsMade+1 < opts.Attempts:
		outcome = "retried"
		err = w.source.RetryJob(ctx, j.ID, opts.Token, false)

	default:
		outcome = "failed"
		res, err = w.source.MoveToFailed(ctx, j.ID, handlerErr.Error(), opts, true)
	}

	if err == nil {
		w.metrics.finished(outcome)
	}

	if err != nil {
		switch {
		case errors.Is(err, conveyor.ErrLockNotOwned),
			errors.Is(err, conveyor.ErrLockMissing):
			// The job expired out from under us or another worker took
			// it; drop it and refetch.
			w.logger.Warn("lost job ownership", "jobId", j.ID, "error", err)
		default:
			w.logger.Error("finish failed", "jobId", j.ID, "error", err)
		}
		return nil
	}
	if res == nil {
		return nil
	}
	next, _ := w.interpret(res)
	return next
}

// interpret extracts the next job or the wait hint from a result.
func (w *Worker) interpret(res *queue.FinishResult) (*job.Job, time.Duration) {
	if res == nil {
		return nil, 0
	}
	if res.NextJob != nil {
		return res.NextJob, 0
	}
	if res.RateLimitTTL > 0 {
		return nil, res.RateLimitTTL
	}
	if !res.NextDelayedAt.IsZero() {
		if d := time.Until(res.NextDelayedAt); d > 0 {
			return nil, d
		}
	}
	return nil, 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
