package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/conveyor/job"
	"github.com/xraph/conveyor/script"
)

// Targets of the finishing procedure.
const (
	targetCompleted = "completed"
	targetFailed    = "failed"
)

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithPrefix overrides the key namespace prefix.
func WithPrefix(prefix string) Option {
	return func(q *Queue) { q.prefix = prefix }
}

// WithClock overrides the time source. Tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue executes the transactional procedures of one named queue. The
// caller owns the Redis client lifecycle. Safe for concurrent use.
type Queue struct {
	client goredis.Cmdable
	name   string
	prefix string
	keys   KeySet
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Queue client for the given queue name.
func New(client goredis.Cmdable, name string, opts ...Option) *Queue {
	q := &Queue{
		client: client,
		name:   name,
		prefix: DefaultPrefix,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(q)
	}
	q.keys = NewKeySet(q.prefix, name)
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Keys returns the queue's key set.
func (q *Queue) Keys() KeySet { return q.keys }

// Client returns the underlying Redis client.
func (q *Queue) Client() goredis.Cmdable { return q.client }

// MoveToCompleted finishes an active job successfully, retaining it in
// the completed set per opts.KeepJobs. With fetchNext the procedure also
// runs next-job selection and may hand back the next job in the same
// round trip.
func (q *Queue) MoveToCompleted(ctx context.Context, jobID, returnValue string, opts job.FinishOpts, fetchNext bool) (*FinishResult, error) {
	return q.moveToFinished(ctx, jobID, returnValue, "returnvalue", targetCompleted, opts, fetchNext)
}

// MoveToFailed finishes an active job as failed, retaining it in the
// failed set per opts.KeepJobs.
func (q *Queue) MoveToFailed(ctx context.Context, jobID, failedReason string, opts job.FinishOpts, fetchNext bool) (*FinishResult, error) {
	return q.moveToFinished(ctx, jobID, failedReason, "failedReason", targetFailed, opts, fetchNext)
}

func (q *Queue) moveToFinished(ctx context.Context, jobID, resultValue, resultField, target string, opts job.FinishOpts, fetchNext bool) (*FinishResult, error) {
	packed, err := opts.Pack()
	if err != nil {
		return nil, err
	}

	keys := []string{
		q.keys.Wait(),
		q.keys.Active(),
		q.keys.Prioritized(),
		q.keys.Events(),
		q.keys.Stalled(),
		q.keys.Limiter(),
		q.keys.Delayed(),
		q.keys.Paused(),
		q.keys.Meta(),
		q.keys.PriorityCounter(),
		q.targetSet(target),
		q.keys.Job(jobID),
		q.keys.Metrics(target),
		q.keys.Marker(),
	}

	fetch := "0"
	if fetchNext {
		fetch = "1"
	}
	raw, err := script.Finish.Run(ctx, q.client, keys,
		jobID,
		q.now().UnixMilli(),
		resultField,
		resultValue,
		target,
		fetch,
		q.keys.Base(),
		packed,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/queue: finish %s: %w", jobID, err)
	}

	res, err := decodeFinishResult(raw)
	if err != nil {
		q.logger.Warn("undecodable finish result",
			"queue", q.name, "jobId", jobID, "error", err)
		return nil, err
	}
	return res, nil
}

// RetryJob returns an active job to the waiting pool: back of the wait
// list by default, front with lifo, or the priority set when the job
// carries a non-default priority. Delayed jobs due by now are promoted
// first regardless of the outcome.
func (q *Queue) RetryJob(ctx context.Context, jobID, token string, lifo bool) error {
	keys := []string{
		q.keys.Active(),
		q.keys.Wait(),
		q.keys.Paused(),
		q.keys.Job(jobID),
		q.keys.Meta(),
		q.keys.Events(),
		q.keys.Delayed(),
		q.keys.Prioritized(),
		q.keys.PriorityCounter(),
		q.keys.Marker(),
		q.keys.Stalled(),
	}

	pushCmd := "LPUSH"
	if lifo {
		pushCmd = "RPUSH"
	}
	if token == "" {
		token = "0"
	}
	raw, err := script.Retry.Run(ctx, q.client, keys,
		q.keys.Base(),
		q.now().UnixMilli(),
		pushCmd,
		jobID,
		token,
	).Result()
	if err != nil {
		return fmt.Errorf("conveyor/queue: retry %s: %w", jobID, err)
	}

	code, ok := raw.(int64)
	if !ok {
		return fmt.Errorf("conveyor/queue: retry %s: unexpected reply %T", jobID, raw)
	}
	return conveyorError(code)
}

// FetchNext runs next-job selection on its own: promotes due delayed
// jobs, honors pause, concurrency and rate limits, and pops from wait
// or the priority set. Workers use it to acquire their first job and
// chain through MoveToCompleted/MoveToFailed afterwards.
func (q *Queue) FetchNext(ctx context.Context, opts job.FinishOpts) (*FinishResult, error) {
	packed, err := opts.Pack()
	if err != nil {
		return nil, err
	}

	keys := []string{
		q.keys.Wait(),
		q.keys.Active(),
		q.keys.Prioritized(),
		q.keys.Events(),
		q.keys.Limiter(),
		q.keys.Delayed(),
		q.keys.Meta(),
		q.keys.PriorityCounter(),
		q.keys.Marker(),
	}

	raw, err := script.Fetch.Run(ctx, q.client, keys,
		q.now().UnixMilli(),
		q.keys.Base(),
		packed,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/queue: fetch next: %w", err)
	}
	return decodeFinishResult(raw)
}

func (q *Queue) targetSet(target string) string {
	if target == targetFailed {
		return q.keys.Failed()
	}
	return q.keys.Completed()
}
