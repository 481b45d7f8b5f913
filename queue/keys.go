package queue

// Key naming for all queue-owned entities. Every key hangs off the
// queue base "<prefix>:<name>:"; the base itself is what procedures
// receive as their prefix argument.

// DefaultPrefix namespaces conveyor keys away from other tenants of the
// same Redis.
const DefaultPrefix = "conveyor"

// KeySet derives the keys of one queue.
type KeySet struct {
	base string
}

// NewKeySet builds a KeySet for the queue name under the given prefix.
func NewKeySet(prefix, name string) KeySet {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return KeySet{base: prefix + ":" + name + ":"}
}

// Base returns the queue prefix including the trailing colon.
func (k KeySet) Base() string { return k.base }

// Wait is the FIFO list of ready jobs.
func (k KeySet) Wait() string { return k.base + "wait" }

// Active is the list of jobs currently held by workers.
func (k KeySet) Active() string { return k.base + "active" }

// Prioritized is the scored set of ready jobs with non-default priority.
func (k KeySet) Prioritized() string { return k.base + "prioritized" }

// PriorityCounter is the monotonic tiebreaker for the priority set.
func (k KeySet) PriorityCounter() string { return k.base + "pc" }

// Delayed is the scored set of scheduled jobs, score = target epoch ms.
func (k KeySet) Delayed() string { return k.base + "delayed" }

// Completed is the retention set of finished jobs.
func (k KeySet) Completed() string { return k.base + "completed" }

// Failed is the retention set of failed jobs.
func (k KeySet) Failed() string { return k.base + "failed" }

// Stalled is the watch set of active jobs checked for liveness.
func (k KeySet) Stalled() string { return k.base + "stalled" }

// WaitingChildren is the scored set of parents waiting on dependencies.
func (k KeySet) WaitingChildren() string { return k.base + "waiting-children" }

// Paused is the vestigial paused-list key slot, kept on the wire for
// compatibility; pause state itself lives in the meta hash.
func (k KeySet) Paused() string { return k.base + "paused" }

// Meta is the queue-wide configuration hash.
func (k KeySet) Meta() string { return k.base + "meta" }

// Events is the capped stream of state transitions.
func (k KeySet) Events() string { return k.base + "events" }

// Marker is the wake-signal key for blocked workers.
func (k KeySet) Marker() string { return k.base + "marker" }

// Limiter is the rate-limit window counter.
func (k KeySet) Limiter() string { return k.base + "limiter" }

// Job is the hash holding a job's durable state.
func (k KeySet) Job(id string) string { return k.base + id }

// Lock is the ownership token key of a job.
func (k KeySet) Lock(id string) string { return k.base + id + ":lock" }

// Dependencies is the set of child keys a parent is waiting on.
func (k KeySet) Dependencies(id string) string {
	return k.base + id + ":dependencies"
}

// Processed is the finished child-to-result map of a parent.
func (k KeySet) Processed(id string) string { return k.base + id + ":processed" }

// Results is the ordered child results list of a parent.
func (k KeySet) Results(id string) string { return k.base + id + ":results" }

// Logs is the job's log list, removed together with the job.
func (k KeySet) Logs(id string) string { return k.base + id + ":logs" }

// Metrics is the per-minute counter hash for the given kind
// ("completed" or "failed"); the ring data list lives at Metrics+":data".
func (k KeySet) Metrics(kind string) string { return k.base + "metrics:" + kind }

// MetricsData is the ring data list of a metrics kind.
func (k KeySet) MetricsData(kind string) string {
	return k.Metrics(kind) + ":data"
}

// Debounce is the index entry mapping a debounce id to a job id.
func (k KeySet) Debounce(deid string) string { return k.base + "de:" + deid }
