// Package batch accumulates mutation events produced during one logical
// operation and delivers them as a single consolidated flush.
//
// A Scope is opened when an operation starts and reference-counted
// across synchronous and asynchronous continuations of that operation.
// When the count returns to zero the scope flushes exactly once: the
// distinct mutated paths are computed and every observer whose
// dependency tree intersects them is notified, once each, in
// registration order. Observers never see a partially applied batch.
package batch
