// Package config loads seed state from YAML files and composes store
// configurations from namespaces.
//
// Seed files are plain YAML documents whose top-level mapping becomes
// the store's initial state. Values support ${VAR} and ${VAR:-default}
// environment substitution before parsing.
package config
