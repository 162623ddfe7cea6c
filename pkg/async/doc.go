// Package async provides a small promise primitive for operations that
// continue past a suspension point.
//
// An operation returning a Thenable tells the runner the work is not
// finished: the runner keeps the mutation batch open and settles it
// when the thenable does. Continuations scheduled with Then run on the
// resolving goroutine, in order.
package async
