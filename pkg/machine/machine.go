package machine

import (
	"fmt"
	"log/slog"

	"github.com/getgrove/grove/pkg/logging"
	"github.com/getgrove/grove/pkg/track"
)

// DefaultField is the object field the current state lives in when the
// spec does not name one.
const DefaultField = "current"

// Handler runs a transition. It receives the machine so it can read the
// bound object and mutate state synchronously. Returning a non-nil
// NextState moves the machine: the old state's declared fields are
// swapped out for the new shape in the same send. Returning nil keeps
// the current state unless the handler moved it itself with Transition.
type Handler func(m *Machine, payload any) (*NextState, error)

// NextState is a handler's replacement shape: the state to move to and
// the fields that come with it.
type NextState struct {
	State  string
	Fields map[string]any
}

// To builds a NextState without accompanying fields.
func To(state string) *NextState { return &NextState{State: state} }

// Spec declares a machine: its state field, initial state, per-state
// field shapes, and the transition table keyed by current state then
// event name.
type Spec struct {
	// Field is the bound object's field holding the current state.
	// Empty means DefaultField.
	Field string
	// Initial is the state reported before the field has ever been
	// written.
	Initial string
	// States lists each state's declared fields. When a transition
	// returns a NextState, fields declared for the old state and not
	// part of the new shape are removed from the bound object. States
	// without entries declare no fields of their own.
	States map[string][]string
	// Transitions maps state -> event -> handler. A state absent from
	// the map has no outgoing transitions.
	Transitions map[string]map[string]Handler
}

// Machine is a transition guard bound to one tracked object.
type Machine struct {
	tree   *track.Tree
	target *track.Object
	field  string
	spec   Spec
	log    *slog.Logger
}

// New binds a machine to a tracked object. A nil logger disables
// logging.
func New(tree *track.Tree, target *track.Object, spec Spec, log *slog.Logger) (*Machine, error) {
	if target == nil {
		return nil, fmt.Errorf("machine requires a target object")
	}
	if spec.Initial == "" {
		return nil, fmt.Errorf("machine requires an initial state")
	}
	if spec.Field == "" {
		spec.Field = DefaultField
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Machine{tree: tree, target: target, field: spec.Field, spec: spec, log: log}, nil
}

// Target returns the bound object.
func (m *Machine) Target() *track.Object { return m.target }

// Current returns the machine's current state. Reading it records a
// dependency on the state field like any other read.
func (m *Machine) Current() string {
	if v, ok := m.target.Get(m.field).(string); ok && v != "" {
		return v
	}
	return m.spec.Initial
}

// In reports whether the machine is currently in the given state.
func (m *Machine) In(state string) bool { return m.Current() == state }

// Transition moves the machine to the next state by writing the state
// field, leaving all other fields alone. Handlers that need the shape
// swap return a NextState instead; like any mutation, Transition
// requires an open batch.
func (m *Machine) Transition(next string) error {
	return m.target.Set(m.field, next)
}

// Send delivers an event. When the current state has a transition for
// it, the handler runs inside a machine send (which legitimizes writes
// in strict mode) and handled is true. A returned NextState is applied
// in the same send: fields declared for the old state and absent from
// the new shape are removed, the new fields are set, and the state
// field is updated last. An event the current state does not accept is
// dropped silently with handled false; senders racing a state change
// need no coordination.
func (m *Machine) Send(event string, payload any) (handled bool, err error) {
	cur := m.Current()
	h := m.spec.Transitions[cur][event]
	if h == nil {
		m.log.Debug("event ignored", "event", event, "state", cur)
		return false, nil
	}

	m.tree.EnterSend()
	defer m.tree.LeaveSend()

	m.log.Debug("event accepted", "event", event, "state", cur)
	next, err := h(m, payload)
	if err != nil {
		return true, err
	}
	if next == nil {
		return true, nil
	}
	return true, m.apply(cur, next)
}

// apply performs the shape swap for a handler-returned NextState.
// Caller is inside the send.
func (m *Machine) apply(cur string, next *NextState) error {
	keep := make(map[string]struct{}, len(next.Fields)+len(m.spec.States[next.State]))
	for _, f := range m.spec.States[next.State] {
		keep[f] = struct{}{}
	}
	for f := range next.Fields {
		keep[f] = struct{}{}
	}
	for _, f := range m.spec.States[cur] {
		if _, shared := keep[f]; shared {
			continue
		}
		if err := m.target.Delete(f); err != nil {
			return err
		}
	}
	for f, v := range next.Fields {
		if err := m.target.Set(f, v); err != nil {
			return err
		}
	}
	return m.target.Set(m.field, next.State)
}

// SendFrom delivers an event only if the machine is still in the given
// state. A continuation resuming after a suspension uses it to drop
// work that a concurrent transition has made stale.
func (m *Machine) SendFrom(expected, event string, payload any) (handled bool, err error) {
	if cur := m.Current(); cur != expected {
		m.log.Debug("stale send dropped", "event", event, "expected", expected, "state", cur)
		return false, nil
	}
	return m.Send(event, payload)
}
