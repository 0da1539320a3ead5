package catalog

import "time"

// Entry is one physical model file tracked in the catalog. Path is relative to
// the root directory named by BaseLabel; the pair is the natural key.
type Entry struct {
	ID          int64
	Name        string
	ModelName   string
	Path        string
	BaseLabel   string
	ContentHash string
	Note        string
	Live        bool
	UpdatedAt   int64
}

// ObserveParams carries one filesystem observation into the catalog.
// ModifiedAt is the on-disk mtime in unix milliseconds.
type ObserveParams struct {
	Path        string
	BaseLabel   string
	Name        string
	ContentHash string
	ModifiedAt  int64
}

// Tag is a named label attachable to entries.
type Tag struct {
	ID   int64
	Name string
}

// TagCount pairs a tag name with how many entries carry it.
type TagCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// JobState enumerates the lifecycle of a background job record.
type JobState string

const (
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Terminal reports whether the state ends the job lifecycle.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job records one background operation. Terminal states are immutable:
// the first terminal write wins and later writes are silently ignored.
type Job struct {
	ID          int64
	Description string
	Error       string
	State       JobState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Stats summarizes catalog health for status surfaces.
type Stats struct {
	TotalEntries    int64
	LiveEntries     int64
	DuplicateGroups int64
	RunningJobs     int64
}
