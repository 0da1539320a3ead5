// Package scanner walks the configured library roots and feeds filesystem
// observations into the catalog. It owns the mark phase's file discovery but
// never decides liveness itself; begin-scan and sweep belong to the caller.
package scanner
