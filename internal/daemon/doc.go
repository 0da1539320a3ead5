// Package daemon wires the long-running services together: catalog store,
// scanner, maintenance manager, download orchestrator, notification hub, and
// the HTTP API. A file lock enforces single-instance execution.
package daemon
