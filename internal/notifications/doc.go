// Package notifications pushes catalog milestones (scan results, download
// outcomes, errors) to an ntfy topic. Without a configured topic every
// publish is a no-op, so callers never need to branch on configuration.
package notifications
