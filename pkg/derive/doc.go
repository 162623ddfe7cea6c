// Package derive caches values computed from tracked state.
//
// Each derived entry owns an observer: computing the entry collects the
// state it read, and a later flush touching any of it marks the entry
// dirty. Consumers pull; a clean entry returns its cache without
// recomputing, a dirty one recomputes on the next read.
package derive
