package batch

import (
	"fmt"

	"github.com/getgrove/grove/pkg/path"
)

// EventType identifies the kind of mutation an Event records.
type EventType string

// Mutation event types.
const (
	// TypeSet is a key or index assignment.
	TypeSet EventType = "set"
	// TypeDelete is a key removal. Assigning nil normalizes to delete;
	// there is no observable "value present but undefined" state.
	TypeDelete EventType = "delete"
	// TypeSplice covers in-place list mutation (push, pop, splice,
	// sort) as a single event for the whole list address.
	TypeSplice EventType = "splice"
	// TypeMethodCall records an intercepted model method invocation.
	TypeMethodCall EventType = "method-call"
)

// Event is a single recorded mutation. Events are produced at the point
// of interception, after the write has already been applied to the
// backing value.
type Event struct {
	// Path addresses the mutated key, or the container itself for
	// splice and method-call events.
	Path path.Path

	// Type is the mutation kind.
	Type EventType

	// Previous is the value before the mutation, nil when absent.
	Previous any

	// Value is the value after the mutation, nil for deletions.
	Value any
}

// MutationOutsideActionError is raised when a write is attempted with
// no open batch scope, or, in strict mode, outside a transition-machine
// send. Mutations must always occur via an operation.
type MutationOutsideActionError struct {
	// Path is the address the offending write targeted.
	Path path.Path

	// Strict is set when a scope was open but the write did not come
	// through an allowed entry point (a transition-machine send).
	Strict bool
}

func (e *MutationOutsideActionError) Error() string {
	if e.Strict {
		return fmt.Sprintf("mutation at %s attempted outside a transition-machine send (strict mode)", e.Path)
	}
	return fmt.Sprintf("mutation at %s attempted outside a running action", e.Path)
}
