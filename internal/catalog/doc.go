// Package catalog persists model-asset entries in SQLite and exposes helpers
// for keeping them synchronized with the filesystem.
//
// The Store manages database connections, schema migrations, the mark-and-sweep
// reconciliation cycle, tag associations, hybrid search, and background job
// records. Entries are keyed by (path, base_label) so re-observing a file
// re-activates its row instead of duplicating it; content hashes are shared
// between rows on purpose, which is what duplicate detection groups by.
//
// Treat this package as the single source of truth for catalog semantics; when
// you add columns or states, add a migration under migrations/ and extend the
// scan helpers here.
package catalog
