package job

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// FinishOpts is the packed options argument of the finishing procedures.
// It travels to the store as a MessagePack map; the msgpack field names
// are part of the wire contract.
type FinishOpts struct {
	// Token proves the calling worker's ownership of the job's lock.
	// The literal "0" bypasses the lock check (internal moves only).
	Token string `msgpack:"token"`

	KeepJobs KeepJobs `msgpack:"keepJobs"`

	// LockDuration is how long, in milliseconds, the lock on a fetched
	// next job is held before the stall watcher may reclaim it.
	LockDuration int64 `msgpack:"lockDuration"`

	// Attempts is the configured attempt budget; a failure that brings
	// the attempts-made counter up to it emits retries-exhausted.
	Attempts int64 `msgpack:"attempts"`

	// MaxMetricsSize caps the per-minute metrics ring. Empty disables
	// metrics collection entirely.
	MaxMetricsSize string `msgpack:"maxMetricsSize"`

	Limiter *RateLimit `msgpack:"limiter,omitempty"`
}

// KeepJobs controls retention of finished jobs. A nil Count retains
// forever (trimmed only by Age when set); a zero Count deletes the job
// and all its sub-keys instead of retaining it.
type KeepJobs struct {
	Count *int64 `msgpack:"count,omitempty"`
	Age   *int64 `msgpack:"age,omitempty"` // seconds
}

// KeepLast retains at most n finished jobs.
func KeepLast(n int64) KeepJobs { return KeepJobs{Count: &n} }

// KeepFor retains finished jobs for the given duration.
func KeepFor(d time.Duration) KeepJobs {
	age := int64(d / time.Second)
	return KeepJobs{Age: &age}
}

// RateLimit bounds how many jobs may be activated per window.
type RateLimit struct {
	Max      int64 `msgpack:"max"`
	Duration int64 `msgpack:"duration"` // window length, milliseconds
}

// Pack encodes the options for the wire. An empty Token packs as "0",
// the bypass sentinel.
func (o FinishOpts) Pack() ([]byte, error) {
	if o.Token == "" {
		o.Token = "0"
	}
	b, err := msgpack.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("conveyor/job: pack opts: %w", err)
	}
	return b, nil
}

// Unpack decodes a packed options blob. Mostly useful in tests.
func Unpack(b []byte) (FinishOpts, error) {
	var o FinishOpts
	if err := msgpack.Unmarshal(b, &o); err != nil {
		return FinishOpts{}, fmt.Errorf("conveyor/job: unpack opts: %w", err)
	}
	return o, nil
}
