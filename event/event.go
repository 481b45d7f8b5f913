// Package event gives consumers typed access to the queue's capped
// transition stream. The procedures append; this package only reads.
package event

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

// Name identifies a transition event on the stream.
type Name string

// Events emitted by the transactional procedures.
const (
	Completed        Name = "completed"
	Failed           Name = "failed"
	Waiting          Name = "waiting"
	Active           Name = "active"
	Delayed          Name = "delayed"
	RetriesExhausted Name = "retries-exhausted"
	Drained          Name = "drained"
)

// Event is one decoded stream entry. Fields beyond Name and JobID are
// populated per event kind; Raw always holds every payload key.
type Event struct {
	// ID is the stream entry id, totally ordered within the queue.
	ID    string
	Name  Name
	JobID string

	// Prev is the state the job transitioned out of, when emitted.
	Prev string

	ReturnValue  string
	FailedReason string
	AttemptsMade int64

	Raw map[string]string
}

// FromMessage decodes a stream message into an Event.
func FromMessage(msg goredis.XMessage) Event {
	raw := make(map[string]string, len(msg.Values))
	for k, v := range msg.Values {
		if s, ok := v.(string); ok {
			raw[k] = s
		}
	}
	e := Event{
		ID:           msg.ID,
		Name:         Name(raw["event"]),
		JobID:        raw["jobId"],
		Prev:         raw["prev"],
		ReturnValue:  raw["returnvalue"],
		FailedReason: raw["failedReason"],
		Raw:          raw,
	}
	e.AttemptsMade, _ = strconv.ParseInt(raw["attemptsMade"], 10, 64) //nolint:errcheck // best-effort parse from trusted stream data
	return e
}

// Reader reads a queue's event stream.
type Reader struct {
	client goredis.Cmdable
	stream string
}

// NewReader creates a Reader over the given stream key.
func NewReader(client goredis.Cmdable, stream string) *Reader {
	return &Reader{client: client, stream: stream}
}

// All returns every retained event, oldest first.
func (r *Reader) All(ctx context.Context) ([]Event, error) {
	msgs, err := r.client.XRange(ctx, r.stream, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/event: read stream: %w", err)
	}
	events := make([]Event, len(msgs))
	for i, m := range msgs {
		events[i] = FromMessage(m)
	}
	return events, nil
}

// ForJob returns the retained events of one job, oldest first.
func (r *Reader) ForJob(ctx context.Context, jobID string) ([]Event, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, e := range all {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}
