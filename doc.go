// Package conveyor provides the server-side transactional core of a
// Redis-backed distributed job queue: atomic state-transition procedures
// that move jobs between the waiting, active, delayed, prioritized,
// completed and failed structures while enforcing the queue's invariants
// under concurrent producers and consumers.
//
// Conveyor is designed as a library, not a service. Import it, hand it a
// Redis client, and drive the procedures from your workers.
//
// # Quick Start
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	q := queue.New(client, "payments")
//
//	res, err := q.MoveToCompleted(ctx, jobID, `{"ok":true}`, job.FinishOpts{
//	    Token:    token,
//	    Attempts: 3,
//	}, true)
//
// # Architecture
//
// Every state transition compiles to a single Redis Lua script, so no
// concurrent observer ever sees an intermediate state. The Go layer owns
// key derivation, argument packing (MessagePack), typed result decoding
// and the mapping of the stable negative wire codes to the sentinel
// errors in this package. The script sources themselves live in the
// script package, assembled from one include per queue component: lock
// manager, parent/child linker, finalizer, event emitter, metrics
// collector and scheduler.
package conveyor
