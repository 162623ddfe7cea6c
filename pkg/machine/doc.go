// Package machine guards a region of tracked state with explicit
// transitions.
//
// A machine binds to a tracked object and keeps its current state in
// one of the object's fields, so observers see state changes like any
// other mutation. Events are sent to the machine; an event with no
// transition out of the current state is ignored rather than failed,
// which makes stale sends after a suspension harmless. A handler moves
// the machine by returning a NextState, which swaps the old state's
// declared fields for the new shape in one send. In strict mode
// the tree rejects writes outside a send, forcing every mutation to be
// accounted for by a transition.
package machine
