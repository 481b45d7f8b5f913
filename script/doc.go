// Package script holds the Lua sources of the transactional procedures
// and their pre-compiled redis.Script handles.
//
// Each procedure is assembled from one include per queue component (lock
// manager, parent/child linker, finalizer, event emitter, metrics
// collector, scheduler) so a single EVALSHA executes the whole state
// transition as one atomic unit. Includes are ordered leaves-first;
// every include may call only the ones assembled before it.
package script
