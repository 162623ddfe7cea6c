package path

import (
	"fmt"
	"strconv"
	"strings"
)

// segmentKind discriminates key segments from index segments.
type segmentKind uint8

const (
	kindKey segmentKind = iota
	kindIndex
)

// Segment is a single step in an address: an object key or a list index.
type Segment struct {
	key  string
	idx  int
	kind segmentKind
}

// Key returns a segment addressing an object field.
func Key(name string) Segment {
	return Segment{key: name, kind: kindKey}
}

// Index returns a segment addressing a list element.
func Index(i int) Segment {
	return Segment{idx: i, kind: kindIndex}
}

// IsIndex reports whether the segment addresses a list element.
func (s Segment) IsIndex() bool { return s.kind == kindIndex }

// Key returns the object key; ok is false for index segments.
func (s Segment) Key() (key string, ok bool) { return s.key, s.kind == kindKey }

// Index returns the list index; ok is false for key segments.
func (s Segment) Index() (idx int, ok bool) { return s.idx, s.kind == kindIndex }

// String returns the segment rendered on its own.
func (s Segment) String() string {
	if s.kind == kindIndex {
		return "[" + strconv.Itoa(s.idx) + "]"
	}
	return s.key
}

// Path is an address: the ordered segments from the state root down to
// a container or value. The zero value is the root address.
type Path struct {
	segs []Segment
}

// Root returns the root address.
func Root() Path { return Path{} }

// New builds a path from the given segments.
func New(segs ...Segment) Path {
	if len(segs) == 0 {
		return Path{}
	}
	out := make([]Segment, len(segs))
	copy(out, segs)
	return Path{segs: out}
}

// Child returns a new path extending p by one segment.
// The receiver is not modified; paths are value-like.
func (p Path) Child(seg Segment) Path {
	segs := make([]Segment, len(p.segs)+1)
	copy(segs, p.segs)
	segs[len(p.segs)] = seg
	return Path{segs: segs}
}

// Field is shorthand for Child(Key(name)).
func (p Path) Field(name string) Path { return p.Child(Key(name)) }

// At is shorthand for Child(Index(i)).
func (p Path) At(i int) Path { return p.Child(Index(i)) }

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segs) }

// IsRoot reports whether p is the root address.
func (p Path) IsRoot() bool { return len(p.segs) == 0 }

// Segment returns the i-th segment.
func (p Path) Segment(i int) Segment { return p.segs[i] }

// Parent returns the address one level up. The parent of the root is
// the root.
func (p Path) Parent() Path {
	if len(p.segs) == 0 {
		return p
	}
	return New(p.segs[:len(p.segs)-1]...)
}

// Equal reports whether two addresses are identical.
func (p Path) Equal(other Path) bool {
	if len(p.segs) != len(other.segs) {
		return false
	}
	for i, s := range p.segs {
		if s != other.segs[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses p itself or one of its
// ancestors. Every path has the root as a prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.segs) > len(p.segs) {
		return false
	}
	for i, s := range prefix.segs {
		if s != p.segs[i] {
			return false
		}
	}
	return true
}

// IsStrictPrefixOf reports whether p is a proper ancestor of other.
func (p Path) IsStrictPrefixOf(other Path) bool {
	return len(p.segs) < len(other.segs) && other.HasPrefix(p)
}

// plainKey reports whether a key can use the dotted form without
// quoting in the canonical string rendering.
func plainKey(k string) bool {
	if k == "" {
		return false
	}
	for _, r := range k {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// String renders the canonical string form, anchored at the root
// ("$", "$.user.addresses[0]"). Keys that would be ambiguous in dotted
// form are single-quoted bracket segments. The result round-trips
// through Parse.
func (p Path) String() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, s := range p.segs {
		if s.kind == kindIndex {
			fmt.Fprintf(&b, "[%d]", s.idx)
			continue
		}
		if !plainKey(s.key) {
			fmt.Fprintf(&b, "['%s']", strings.ReplaceAll(s.key, "'", "\\'"))
			continue
		}
		b.WriteByte('.')
		b.WriteString(s.key)
	}
	return b.String()
}

// SlashString renders the path with slash separators ("user/addresses/0"),
// the form matched by inspector subscription glob patterns. The root
// renders as "$".
func (p Path) SlashString() string {
	if len(p.segs) == 0 {
		return "$"
	}
	parts := make([]string, len(p.segs))
	for i, s := range p.segs {
		if s.kind == kindIndex {
			parts[i] = strconv.Itoa(s.idx)
		} else {
			parts[i] = s.key
		}
	}
	return strings.Join(parts, "/")
}
