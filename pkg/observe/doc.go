// Package observe tracks which observers depend on which parts of a
// state tree.
//
// An Observer is anything that reads tracked state and wants to be told
// when it changes: a UI component, a reaction callback, or a derived
// value entry. While an observer is "collecting" (between Collector.Start
// and Collector.Stop), every tracked read is recorded into a dependency
// tree for that observer. Stop diffs the freshly collected tree against
// the previous one and reconciles the registry's read index, so an
// observer that reads different paths on its next evaluation sheds the
// stale registrations automatically.
//
// The Registry keeps observers in registration order, which is the
// order flush notifications are delivered in.
package observe
