// Package version carries the release identifier stamped into status output
// and user agents.
package version

// Version is the current modelkeep release.
const Version = "0.1.0"
