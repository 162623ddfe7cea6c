package track

import (
	"sort"

	"github.com/getgrove/grove/pkg/batch"
	"github.com/getgrove/grove/pkg/path"
)

// Object is a tracked string-keyed container.
type Object struct {
	tree   *Tree
	addr   path.Path
	fields map[string]any
	gen    uint64
}

func (o *Object) container() {}

// Address returns the object's current address.
func (o *Object) Address() path.Path {
	o.tree.mu.RLock()
	defer o.tree.mu.RUnlock()
	return o.addr
}

// Generation returns the structural mutation counter.
func (o *Object) Generation() uint64 {
	o.tree.mu.RLock()
	defer o.tree.mu.RUnlock()
	return o.gen
}

// Get returns the value stored at key, or nil when absent. The read is
// recorded against the collecting observer, including reads of absent
// keys, so an observer learns about the key's later creation.
func (o *Object) Get(key string) any {
	o.tree.mu.RLock()
	target := o.addr.Field(key)
	v := o.fields[key]
	o.tree.mu.RUnlock()

	o.tree.record(target, false)
	return v
}

// Has reports whether the key is present.
func (o *Object) Has(key string) bool {
	o.tree.mu.RLock()
	target := o.addr.Field(key)
	_, ok := o.fields[key]
	o.tree.mu.RUnlock()

	o.tree.record(target, false)
	return ok
}

// Object returns the child object at key, or nil if absent or not an
// object.
func (o *Object) Object(key string) *Object {
	child, _ := o.Get(key).(*Object)
	return child
}

// List returns the child list at key, or nil if absent or not a list.
func (o *Object) List(key string) *List {
	child, _ := o.Get(key).(*List)
	return child
}

// Model returns the child model at key, or nil if absent or not a
// model.
func (o *Object) Model(key string) *Model {
	child, _ := o.Get(key).(*Model)
	return child
}

// Keys returns the present keys in sorted order. Listing keys is a
// nested read: the observer depends on the whole container.
func (o *Object) Keys() []string {
	o.tree.mu.RLock()
	addr := o.addr
	keys := make([]string, 0, len(o.fields))
	for k := range o.fields {
		keys = append(keys, k)
	}
	o.tree.mu.RUnlock()

	o.tree.record(addr, true)
	sort.Strings(keys)
	return keys
}

// Len returns the number of present keys. A nested read, like Keys.
func (o *Object) Len() int {
	o.tree.mu.RLock()
	addr := o.addr
	n := len(o.fields)
	o.tree.mu.RUnlock()

	o.tree.record(addr, true)
	return n
}

// Set assigns key to v, adopting container values into the tree at
// this object's address plus the key. Assigning nil normalizes to
// Delete: there is no "present but empty" value distinct from null.
func (o *Object) Set(key string, v any) error {
	if v == nil {
		return o.Delete(key)
	}

	t := o.tree
	t.mu.RLock()
	target := o.addr.Field(key)
	t.mu.RUnlock()

	s, err := t.writeScope(target)
	if err != nil {
		return err
	}

	t.mu.Lock()
	target = o.addr.Field(key)
	var reg []Container
	adopted, err := t.adopt(v, target, &reg)
	if err != nil {
		t.rollback(reg)
		t.mu.Unlock()
		return err
	}
	prev, existed := o.fields[key]
	if existed && prev != adopted {
		t.disown(prev)
	}
	o.fields[key] = adopted
	if !existed {
		o.gen++
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
func (o *Object) Delete(key string) error {
	t := o.tree
	t.mu.RLock()
	target := o.addr.Field(key)
	t.mu.RUnlock()

	s, err := t.writeScope(target)
	if err != nil {
		return err
	}

	t.mu.Lock()
	target = o.addr.Field(key)
	prev, existed := o.fields[key]
	if !existed {
		t.mu.Unlock()
		return nil
	}
	delete(o.fields, key)
	t.disown(prev)
	o.gen++
	t.mu.Unlock()

	t.recordEvent(s, batch.Event{
		Path:     target,
		Type:     batch.TypeDelete,
		Previous: prev,
	})
	return nil
}
