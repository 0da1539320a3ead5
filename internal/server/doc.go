// Package server exposes the daemon's HTTP API: catalog search, item
// management, maintenance triggers, job and status reporting, and the SSE
// event stream bridged from the notification hub.
package server
