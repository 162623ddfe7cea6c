// Package track wraps a state tree in change-tracking containers.
//
// Host languages with transparent proxies intercept property access
// syntactically; here interception is an explicit container abstraction.
// Three container types cover the tree: Object (string-keyed), List
// (integer-indexed), and Model (a class-instance analog with a type
// name and registered methods). Primitive values are stored unwrapped;
// tracking happens at the parent container's key or index.
//
// Every read is attributed to the observer currently collecting
// dependencies. Every write validates that a batch scope is open,
// recursively adopts newly inserted containers (assigning each its
// address and enforcing that a container lives at exactly one address),
// records a mutation event, and applies immediately, so reads later in
// the same synchronous segment observe the new value.
package track
