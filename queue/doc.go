// Package queue is the client surface of the transactional core: it
// derives every key a queue owns, packs procedure arguments, executes
// the scripts and decodes their results into typed values.
package queue
