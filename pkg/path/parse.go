package path

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// Parse converts the canonical string form of an address back into a
// Path. "$" and "" both parse to the root. Only plain child keys and
// numeric indexes are valid address syntax; wildcard, descent, filter,
// and slice expressions are rejected.
func Parse(s string) (Path, error) {
	if s == "" || s == "$" {
		return Root(), nil
	}

	expr, err := jp.ParseString(s)
	if err != nil {
		return Path{}, fmt.Errorf("parse address %q: %w", s, err)
	}

	segs := make([]Segment, 0, len(expr))
	for _, frag := range expr {
		switch f := frag.(type) {
		case jp.Root, jp.At, jp.Bracket:
			// Structural markers, no segment of their own.
		case jp.Child:
			segs = append(segs, Key(string(f)))
		case jp.Nth:
			segs = append(segs, Index(int(f)))
		default:
			return Path{}, fmt.Errorf("parse address %q: unsupported fragment %T", s, frag)
		}
	}
	return New(segs...), nil
}

// MustParse is Parse that panics on malformed input. Intended for
// fixed addresses in tests and configuration tables.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}
