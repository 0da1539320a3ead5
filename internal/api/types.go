package api

import "modelkeep/internal/catalog"

// CommonResponse acknowledges a request that returns no data.
type CommonResponse struct {
	Msg string `json:"msg,omitempty"`
	Err string `json:"err,omitempty"`
}

// ModelInfo is one catalog entry enriched with on-disk sidecar metadata for
// display. Path is the absolute filesystem path of the model file; Preview
// and VideoPreview are /files/{label}/… paths for a fronting file server.
type ModelInfo struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	Preview      string `json:"preview"`
	VideoPreview string `json:"video_preview,omitempty"`
	Info         string `json:"info"`
	Description  string `json:"description"`
	Note         string `json:"note"`
}

// SearchResponse carries one page of search results. TotalPage derives from
// the engine's approximate total, which deliberately over-counts entries that
// match both search phases. A failed search yields empty Items and Err set.
type SearchResponse struct {
	Items     []ModelInfo        `json:"items"`
	TotalPage int64              `json:"total_page"`
	Tags      []catalog.TagCount `json:"tags"`
	Err       string             `json:"err,omitempty"`
}

// SavedLocationResponse resolves where a download for a model category
// should land.
type SavedLocationResponse struct {
	SavedLocation string `json:"saved_location"`
	IsDownloaded  bool   `json:"is_downloaded"`
}

// ItemUpdate replaces the tag list and note of one entry. Tags is
// whitespace-separated; names are folded to lowercase server-side.
type ItemUpdate struct {
	ItemID int64  `json:"item_id"`
	Tags   string `json:"tags"`
	Note   string `json:"note"`
}

// JobInfo is one background job record.
type JobInfo struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
	State       string `json:"state"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// JobListResponse lists jobs newest first.
type JobListResponse struct {
	Jobs []JobInfo `json:"jobs"`
}

// TagListResponse lists every tag with its use count.
type TagListResponse struct {
	Tags []catalog.TagCount `json:"tags"`
}

// RootStatus reports one configured library root and its free disk space.
type RootStatus struct {
	Label     string `json:"label"`
	Path      string `json:"path"`
	FreeBytes uint64 `json:"free_bytes"`
}

// StatusResponse summarizes daemon health.
type StatusResponse struct {
	Version         string       `json:"version"`
	PID             int          `json:"pid"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
	DatabasePath    string       `json:"database_path"`
	TotalEntries    int64        `json:"total_entries"`
	LiveEntries     int64        `json:"live_entries"`
	DuplicateGroups int64        `json:"duplicate_groups"`
	RunningJobs     int64        `json:"running_jobs"`
	Roots           []RootStatus `json:"roots"`
}

// EventMessage is one hub event as rendered on the SSE stream.
type EventMessage struct {
	Level string `json:"level"`
	Text  string `json:"msg"`
}
