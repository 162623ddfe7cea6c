package track

// Plain converts the object's subtree to plain data (maps, slices,
// primitives). The conversion records one nested dependency on the
// object: a consumer of the plain form depends on everything under it.
func (o *Object) Plain() map[string]any {
	o.tree.mu.RLock()
	addr := o.addr
	out := plainFields(o.fields)
	o.tree.mu.RUnlock()

	o.tree.record(addr, true)
	return out
}

// Plain converts the list's subtree to plain data, recording one nested
// dependency on the list.
func (l *List) Plain() []any {
	l.tree.mu.RLock()
	addr := l.addr
	out := plainItems(l.items)
	l.tree.mu.RUnlock()

	l.tree.record(addr, true)
	return out
}

// Plain converts the model's fields to plain data, recording one nested
// dependency. The model's type identity is not represented; snapshots
// that need it go through the type's serializer.
func (m *Model) Plain() map[string]any {
	if m.tree == nil {
		return plainFields(m.rawFields)
	}
	m.tree.mu.RLock()
	addr := m.addr
	out := plainFields(m.fields)
	m.tree.mu.RUnlock()

	m.tree.record(addr, true)
	return out
}

// plainValue converts any tracked or primitive value to plain data
// without recording dependencies. The tree lock must be held.
func plainValue(v any) any {
	switch val := v.(type) {
	case *Object:
		return plainFields(val.fields)
	case *List:
		return plainItems(val.items)
	case *Model:
		return plainFields(val.fields)
	default:
		return v
	}
}

func plainFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = plainValue(v)
	}
	return out
}

func plainItems(items []any) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = plainValue(v)
	}
	return out
}

// Plain converts an arbitrary value to its plain form: containers
// become maps and slices via their own Plain methods, primitives pass
// through.
func Plain(v any) any {
	switch val := v.(type) {
	case *Object:
		return val.Plain()
	case *List:
		return val.Plain()
	case *Model:
		return val.Plain()
	default:
		return v
	}
}
