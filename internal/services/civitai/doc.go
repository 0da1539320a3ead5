// Package civitai talks to the Civitai API: version lookups by content hash,
// model metadata, sidecar materialization, and verified file downloads.
package civitai
