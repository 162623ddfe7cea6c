// Package cli implements the grove command-line interface: snapshot
// validation, mutation-log replay, live feed watching, and seed-file
// scaffolding.
package cli
