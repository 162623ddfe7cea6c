package codec

import (
	"fmt"
	"sync"

	"github.com/ohler55/ojg/oj"

	"github.com/getgrove/grove/pkg/batch"
	"github.com/getgrove/grove/pkg/path"
	"github.com/getgrove/grove/pkg/track"
)

// LogEntry is one replayable mutation. Values are stored in plain form.
type LogEntry struct {
	// Seq numbers entries in append order, starting at 1.
	Seq uint64 `json:"seq"`
	// Path is the canonical address the mutation targeted.
	Path string `json:"path"`
	// Type is the mutation kind (set, delete, splice, method-call).
	Type string `json:"type"`
	// Value is the written value. For splices it is the list's full
	// contents after the mutation, which is what makes them replayable.
	Value any `json:"value,omitempty"`
}

// Log accumulates mutations in a form that can be serialized and
// replayed onto a fresh tree.
type Log struct {
	tree *track.Tree

	mu      sync.Mutex
	entries []LogEntry
	seq     uint64
}

// NewLog creates an empty log. The tree is consulted to capture list
// contents for splice entries.
func NewLog(tree *track.Tree) *Log {
	return &Log{tree: tree}
}

// Append records a mutation event. Wire it to the tree's event hook.
func (l *Log) Append(ev batch.Event) {
	entry := LogEntry{
		Path: ev.Path.String(),
		Type: string(ev.Type),
	}

	switch ev.Type {
	case batch.TypeSet:
		entry.Value = track.Plain(ev.Value)
	case batch.TypeSplice:
		// The event only carries lengths; capture the resulting list so
		// replay can reproduce the mutation as one assignment.
		if list, ok := resolve(l.tree.Root(), ev.Path).(*track.List); ok {
			entry.Value = list.Plain()
		}
	case batch.TypeMethodCall:
		entry.Value = ev.Value
	}

	l.mu.Lock()
	l.seq++
	entry.Seq = l.seq
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (l *Log) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset discards the recorded entries.
func (l *Log) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.seq = 0
	l.mu.Unlock()
}

// Marshal encodes the log as JSON.
func (l *Log) Marshal() ([]byte, error) {
	return oj.Marshal(l.Entries())
}

// ParseLog decodes a JSON mutation log.
func ParseLog(data []byte) ([]LogEntry, error) {
	var entries []LogEntry
	if err := oj.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse mutation log: %w", err)
	}
	return entries, nil
}

// Replay applies logged mutations onto the root in order. Method-call
// entries are informational and skipped; their effects were logged as
// the mutations they caused. Like Rehydrator.Apply, run it inside an
// operation.
func Replay(root *track.Object, entries []LogEntry) error {
	for _, entry := range entries {
		if err := replayEntry(root, entry); err != nil {
			return fmt.Errorf("replay entry %d (%s %s): %w", entry.Seq, entry.Type, entry.Path, err)
		}
	}
	return nil
}

func replayEntry(root *track.Object, entry LogEntry) error {
	switch batch.EventType(entry.Type) {
	case batch.TypeMethodCall:
		return nil
	case batch.TypeSet, batch.TypeDelete, batch.TypeSplice:
	default:
		return fmt.Errorf("unknown mutation type %q", entry.Type)
	}

	p, err := path.Parse(entry.Path)
	if err != nil {
		return err
	}
	if p.IsRoot() {
		return fmt.Errorf("cannot replay onto the root itself")
	}

	parent := resolve(root, p.Parent())
	last := p.Segment(p.Len() - 1)

	switch batch.EventType(entry.Type) {
	case batch.TypeDelete:
		key, ok := last.Key()
		if !ok {
			return fmt.Errorf("delete targets a list index")
		}
		switch c := parent.(type) {
		case *track.Object:
			return c.Delete(key)
		case *track.Model:
			return c.Delete(key)
		default:
			return fmt.Errorf("no object at %s", p.Parent())
		}

	default: // set and splice both replay as an assignment
		if key, ok := last.Key(); ok {
			switch c := parent.(type) {
			case *track.Object:
				return c.Set(key, entry.Value)
			case *track.Model:
				return c.Set(key, entry.Value)
			default:
				return fmt.Errorf("no object at %s", p.Parent())
			}
		}
		idx, _ := last.Index()
		list, ok := parent.(*track.List)
		if !ok {
			return fmt.Errorf("no list at %s", p.Parent())
		}
		if idx == list.Len() {
			return list.Push(entry.Value)
		}
		return list.Set(idx, entry.Value)
	}
}

// resolve walks from the root to the container or value at p, returning
// nil when the path dead-ends.
func resolve(root *track.Object, p path.Path) any {
	var cur any = root
	for i := 0; i < p.Len(); i++ {
		seg := p.Segment(i)
		if key, ok := seg.Key(); ok {
			switch c := cur.(type) {
			case *track.Object:
				cur = c.Get(key)
			case *track.Model:
				cur = c.Get(key)
			default:
				return nil
			}
			continue
		}
		idx, _ := seg.Index()
		list, ok := cur.(*track.List)
		if !ok {
			return nil
		}
		cur = list.At(idx)
	}
	return cur
}
