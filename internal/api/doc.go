// Package api defines the JSON shapes exchanged between the modelkeep daemon
// and its HTTP clients. The server encodes them, the CLI client decodes them;
// keeping them in one place keeps the two ends honest.
package api
