// Package store assembles a reactive state store: the tracked tree,
// the observer registry, the operation runner, the derived-value cache,
// the serialization codec, and the inspection feed, wired together
// behind one handle.
//
// A store is configured with its initial state, named operations,
// effect handles, and derived values, then driven by running operations
// and subscribing observers to the state they read.
package store
