// Package codec moves tracked state across the process boundary.
//
// Snapshot flattens a tree to plain JSON-ready data, consulting each
// model type's serializer. Rehydrate applies such data back through the
// normal tracked writes, reviving models with factories registered at
// the paths they live at. Log captures the mutation stream in a
// replayable form. Snapshots can be checked against a JSON Schema
// before they are applied.
package codec
