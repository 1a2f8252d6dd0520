// Package job defines the envelope wire format, the process-local handler
// registry, per-handler dispatch options, and proxy registration.
//
// An Envelope is the serializable unit of work. Its Handler field is a
// logical name resolved against a registry on the consuming side; the
// producing side never needs the entry that implements it. A proxy entry
// declares dispatch defaults under an alias that is rewritten to the real
// handler name before publishing, which is what lets producers address
// handlers that live in another deployable without sharing code.
package job
