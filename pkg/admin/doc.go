// Package admin exposes a running store over HTTP: state snapshots,
// operation invocation, derived values, mutation log export, and the
// inspection feed as a WebSocket endpoint.
//
// The API is a local control plane for development tooling, not a
// public surface. It binds to a port without authentication; keep it
// off untrusted networks.
package admin
