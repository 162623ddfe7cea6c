// Package action runs named operations against a tracked state tree.
//
// An operation receives a context giving it the state root, the effect
// handles, and the ability to invoke other operations. All mutations an
// operation performs, directly or through nested operations, land in
// one batch scope; the batch flushes once, when the outermost operation
// finishes. An operation returning a Thenable keeps the batch open
// across the suspension and flushes when the thenable settles.
package action
