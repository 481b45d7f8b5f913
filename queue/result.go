package queue

import (
	"fmt"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/job"
)

// FinishResult is the decoded outcome of a finishing or fetching
// procedure. At most one of the three fields is meaningful: a fetched
// NextJob, a RateLimitTTL to sleep through, or the due time of the
// nearest delayed job. The zero value means "done, nothing to hand
// back" (the queue may have drained; the event stream tells).
type FinishResult struct {
	// NextJob is the job handed to the caller for processing, already
	// moved to the active list and locked with the caller's token.
	NextJob *job.Job

	// RateLimitTTL is how long the limiter window still has to run.
	RateLimitTTL time.Duration

	// NextDelayedAt is the due time of the earliest delayed job, zero
	// when the delayed set is empty.
	NextDelayedAt time.Time
}

// conveyorError maps a wire code onto the root package sentinels.
func conveyorError(code int64) error {
	return conveyor.ErrorFromCode(code)
}

// decodeFinishResult turns a script reply into a FinishResult. Replies
// are either a bare integer (0 or a negative wire code) or the
// scheduler's 4-tuple.
func decodeFinishResult(raw interface{}) (*FinishResult, error) {
	switch v := raw.(type) {
	case int64:
		if err := conveyorError(v); err != nil {
			return nil, err
		}
		return &FinishResult{}, nil

	case []interface{}:
		if len(v) != 4 {
			return nil, fmt.Errorf("conveyor/queue: reply tuple has %d elements, want 4", len(v))
		}

		// First element is the fetched job's field list when a job was
		// selected, integer zero otherwise.
		if fields, ok := v[0].([]interface{}); ok {
			id, ok := v[1].(string)
			if !ok {
				return nil, fmt.Errorf("conveyor/queue: fetched job id is %T, want string", v[1])
			}
			j, err := job.FromFields(id, fields)
			if err != nil {
				return nil, err
			}
			return &FinishResult{NextJob: j}, nil
		}

		res := &FinishResult{}
		if ttl := toInt64(v[2]); ttl > 0 {
			res.RateLimitTTL = time.Duration(ttl) * time.Millisecond
		}
		if due := toInt64(v[3]); due > 0 {
			res.NextDelayedAt = time.UnixMilli(due)
		}
		return res, nil

	default:
		return nil, fmt.Errorf("conveyor/queue: unexpected reply type %T", raw)
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		var out int64
		_, _ = fmt.Sscan(n, &out) //nolint:errcheck // best-effort parse from trusted reply
		return out
	default:
		return 0
	}
}
