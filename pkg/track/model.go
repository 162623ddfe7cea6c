package track

import (
	"sort"

	"github.com/getgrove/grove/pkg/batch"
	"github.com/getgrove/grove/pkg/path"
)

// Method is a behavior registered on a model type. It runs with the
// model as receiver; mutations it performs go through the normal
// tracked accessors and record their own events.
type Method func(m *Model, args ...any) (any, error)

// ModelType describes a class of models: a stable type name used by
// rehydration to find the right factory, the callable methods, and an
// optional custom serializer consulted by snapshots.
type ModelType struct {
	// Name identifies the type in snapshots and the rehydration
	// registry.
	Name string
	// Methods maps method names to their implementations.
	Methods map[string]Method
	// Serialize produces the model's snapshot representation. Models
	// without one cannot be snapshotted.
	Serialize func(m *Model) (map[string]any, error)
}

// Model is a tracked container with a type identity and callable
// methods, the class-instance analog of Object. A model starts
// detached; inserting it into a tree adopts its initial fields and
// wires up tracking.
type Model struct {
	tree      *Tree
	mt        *ModelType
	addr      path.Path
	fields    map[string]any
	rawFields map[string]any
	gen       uint64
}

// NewModel creates a detached model of the given type with the given
// initial fields. The field map is copied; it is adopted into a tree
// when the model is first inserted.
func NewModel(mt *ModelType, fields map[string]any) *Model {
	raw := make(map[string]any, len(fields))
	for k, v := range fields {
		raw[k] = v
	}
	return &Model{mt: mt, rawFields: raw}
}

func (m *Model) container() {}

// Type returns the model's type descriptor.
func (m *Model) Type() *ModelType { return m.mt }

// Attached reports whether the model has been inserted into a tree.
func (m *Model) Attached() bool { return m.tree != nil }

// Address returns the model's current address, or the zero path while
// detached.
func (m *Model) Address() path.Path {
	if m.tree == nil {
		return path.Root()
	}
	m.tree.mu.RLock()
	defer m.tree.mu.RUnlock()
	return m.addr
}

// Generation returns the structural mutation counter.
func (m *Model) Generation() uint64 {
	if m.tree == nil {
		return 0
	}
	m.tree.mu.RLock()
	defer m.tree.mu.RUnlock()
	return m.gen
}

// Get returns the value stored at key, or nil when absent. Reads on a
// detached model see the initial fields and record no dependency.
func (m *Model) Get(key string) any {
	if m.tree == nil {
		return m.rawFields[key]
	}
	m.tree.mu.RLock()
	target := m.addr.Field(key)
	v := m.fields[key]
	m.tree.mu.RUnlock()

	m.tree.record(target, false)
	return v
}

// Has reports whether the key is present.
func (m *Model) Has(key string) bool {
	if m.tree == nil {
		_, ok := m.rawFields[key]
		return ok
	}
	m.tree.mu.RLock()
	target := m.addr.Field(key)
	_, ok := m.fields[key]
	m.tree.mu.RUnlock()

	m.tree.record(target, false)
	return ok
}

// Object returns the child object at key, or nil if absent or not an
// object.
func (m *Model) Object(key string) *Object {
	child, _ := m.Get(key).(*Object)
	return child
}

// List returns the child list at key, or nil if absent or not a list.
func (m *Model) List(key string) *List {
	child, _ := m.Get(key).(*List)
	return child
}

// Model returns the child model at key, or nil if absent or not a
// model.
func (m *Model) Model(key string) *Model {
	child, _ := m.Get(key).(*Model)
	return child
}

// Keys returns the present keys in sorted order. A nested read, like
// Object.Keys.
func (m *Model) Keys() []string {
	if m.tree == nil {
		keys := make([]string, 0, len(m.rawFields))
		for k := range m.rawFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}
	m.tree.mu.RLock()
	addr := m.addr
	keys := make([]string, 0, len(m.fields))
	for k := range m.fields {
		keys = append(keys, k)
	}
	m.tree.mu.RUnlock()

	m.tree.record(addr, true)
	sort.Strings(keys)
	return keys
}

// Set assigns key to v. Mutating a detached model is an error; set the
// initial fields at construction instead. Assigning nil normalizes to
// Delete, as for objects.
func (m *Model) Set(key string, v any) error {
	if m.tree == nil {
		return ErrDetachedModel
	}
	if v == nil {
		return m.Delete(key)
	}

	t := m.tree
	t.mu.RLock()
	target := m.addr.Field(key)
	t.mu.RUnlock()

	s, err := t.writeScope(target)
	if err != nil {
		return err
	}

	t.mu.Lock()
	target = m.addr.Field(key)
	var reg []Container
	adopted, err := t.adopt(v, target, &reg)
	if err != nil {
		t.rollback(reg)
		t.mu.Unlock()
		return err
	}
	prev, existed := m.fields[key]
	if existed && prev != adopted {
		t.disown(prev)
	}
	m.fields[key] = adopted
	if !existed {
		m.gen++
	}
	t.mu.Unlock()

	t.recordEvent(s, batch.Event{
		Path:     target,
		Type:     batch.TypeSet,
		Previous: prev,
		Value:    adopted,
	})
	return nil
}

// Delete removes key. Removing an absent key is a no-op and records no
// event.
func (m *Model) Delete(key string) error {
	if m.tree == nil {
		return ErrDetachedModel
	}

	t := m.tree
	t.mu.RLock()
	target := m.addr.Field(key)
	t.mu.RUnlock()

	s, err := t.writeScope(target)
	if err != nil {
		return err
	}

	t.mu.Lock()
	target = m.addr.Field(key)
	prev, existed := m.fields[key]
	if !existed {
		t.mu.Unlock()
		return nil
	}
	delete(m.fields, key)
	t.disown(prev)
	m.gen++
	t.mu.Unlock()

	t.recordEvent(s, batch.Event{
		Path:     target,
		Type:     batch.TypeDelete,
		Previous: prev,
	})
	return nil
}

// Call invokes a registered method by name. The call itself records one
// method-call event at the model's address so observers depending on
// the model are notified even when the method mutates nothing
// observable; mutations inside the method record their own events on
// top.
func (m *Model) Call(name string, args ...any) (any, error) {
	if m.tree == nil {
		return nil, ErrDetachedModel
	}
	if m.mt == nil || m.mt.Methods[name] == nil {
		return nil, ErrUnknownMethod
	}

	t := m.tree
	t.mu.RLock()
	addr := m.addr
	t.mu.RUnlock()

	s, err := t.writeScope(addr)
	if err != nil {
		return nil, err
	}

	t.recordEvent(s, batch.Event{
		Path:  addr,
		Type:  batch.TypeMethodCall,
		Value: name,
	})
	return m.mt.Methods[name](m, args...)
}
