// Package job defines the wire-level job model: the fields of the job
// hash, the encoded parent reference, and the packed options argument
// consumed by the transactional procedures.
package job
