// Package downloads runs the asynchronous download pipeline: destination
// validation, the verified transfer, sidecar metadata, and catalog ingest.
// Callers get an immediate acknowledgement; outcomes surface through the job
// tracker and the event hub.
package downloads
