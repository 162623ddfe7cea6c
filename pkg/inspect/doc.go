// Package inspect emits the store's observable event feed: operation
// start/end, every mutation, flush summaries, and derived-value
// recomputations.
//
// The feed always emits regardless of whether anything is listening;
// with no subscribers an emission is a sequence-number bump and a ring
// buffer write. External debugging tools subscribe in-process via
// Feed.Subscribe, optionally filtered by a doublestar glob over the
// slash form of mutation paths ("user/**"), or remotely through the
// WebSocket handler in this package.
package inspect
