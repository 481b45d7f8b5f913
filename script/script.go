package script

import (
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

// header aliases redis.call once per assembled script.
const header = "local rcall = redis.call\n"

// assemble concatenates the include chunks and the procedure body into
// a single script source.
func assemble(chunks ...string) string {
	var b strings.Builder
	b.WriteString(header)
	for _, c := range chunks {
		b.WriteString(c)
		b.WriteString("\n")
	}
	return b.String()
}

// Pre-compiled procedure handles. Run executes via EVALSHA and falls
// back to EVAL on NOSCRIPT, so callers never load scripts explicitly.
var (
	// Finish is the finish-active-job procedure.
	//
	// KEYS: 1 wait, 2 active, 3 prioritized, 4 events, 5 stalled,
	//       6 limiter, 7 delayed, 8 paused (vestigial, unused),
	//       9 meta, 10 priority counter, 11 completed-or-failed target,
	//       12 job hash, 13 metrics, 14 marker.
	// ARGV: 1 jobId, 2 timestamp ms, 3 result field, 4 result value,
	//       5 target ("completed"|"failed"), 6 fetchNext ("0"|"1"),
	//       7 key prefix, 8 packed opts (msgpack).
	//
	// Returns 0, a negative wire code, or the scheduler 4-tuple.
	Finish = goredis.NewScript(FinishSource)

	// Retry is the retry-failed-job procedure.
	//
	// KEYS: 1 active, 2 wait, 3 paused (vestigial, unused), 4 job hash,
	//       5 meta, 6 events, 7 delayed, 8 prioritized,
	//       9 priority counter, 10 marker, 11 stalled.
	// ARGV: 1 key prefix, 2 timestamp ms, 3 push command
	//       ("LPUSH"|"RPUSH"), 4 jobId, 5 token.
	//
	// Returns 0, -1, -2, -3 or -6.
	Retry = goredis.NewScript(RetrySource)

	// Fetch is the standalone next-job selection procedure used by
	// workers to acquire their first job; afterwards they chain through
	// Finish with fetchNext set.
	//
	// KEYS: 1 wait, 2 active, 3 prioritized, 4 events, 5 limiter,
	//       6 delayed, 7 meta, 8 priority counter, 9 marker.
	// ARGV: 1 timestamp ms, 2 key prefix, 3 packed opts (msgpack).
	//
	// Returns the scheduler 4-tuple or 0.
	Fetch = goredis.NewScript(FetchSource)
)

// Assembled script sources, exported for inspection and tests.
var (
	FinishSource = assemble(
		includeReleaseLock,
		includeTrimEvents,
		includeSetMarker,
		includeAddJobWithPriority,
		includeIsQueuePausedOrMaxed,
		includePromoteDelayedJobs,
		includeRateLimit,
		includeNextDelayedTimestamp,
		includePrepareJobForProcessing,
		includeMoveJobFromPriorityToActive,
		includeRemoveJobKeys,
		includeRemoveJobsByMaxAge,
		includeRemoveJobsByMaxCount,
		includeMoveParentToWaitIfNeeded,
		includeUpdateParentDepsIfNeeded,
		includeMoveParentToFailedIfNeeded,
		includeMoveParentIfNeeded,
		includeCollectMetrics,
		finishBody,
	)

	RetrySource = assemble(
		includeReleaseLock,
		includeTrimEvents,
		includeSetMarker,
		includeAddJobWithPriority,
		includeIsQueuePausedOrMaxed,
		includePromoteDelayedJobs,
		retryBody,
	)

	FetchSource = assemble(
		includeTrimEvents,
		includeSetMarker,
		includeAddJobWithPriority,
		includeIsQueuePausedOrMaxed,
		includePromoteDelayedJobs,
		includeRateLimit,
		includeNextDelayedTimestamp,
		includePrepareJobForProcessing,
		includeMoveJobFromPriorityToActive,
		fetchBody,
	)
)
