package civitai

// FileHashes carries the digests Civitai publishes per file. Only BLAKE3 is
// used here; it is the catalog's content hash.
type FileHashes struct {
	BLAKE3 string `json:"BLAKE3"`
}

// FileMetadata describes the precision and packaging of one version file.
type FileMetadata struct {
	FP     string `json:"fp"`
	Size   string `json:"size"`
	Format string `json:"format"`
}

// VersionFile is one downloadable file of a model version.
type VersionFile struct {
	Name        string       `json:"name"`
	DownloadURL string       `json:"downloadUrl"`
	Hashes      FileHashes   `json:"hashes"`
	Metadata    FileMetadata `json:"metadata"`
}

// VersionImage is one preview image or clip attached to a version.
type VersionImage struct {
	URL string `json:"url"`
}

// Version is the model-version payload, the shape persisted as the
// <stem>.json sidecar.
type Version struct {
	ID        int64          `json:"id"`
	ModelID   int64          `json:"modelId"`
	Name      string         `json:"name"`
	BaseModel string         `json:"baseModel"`
	Files     []VersionFile  `json:"files"`
	Images    []VersionImage `json:"images"`
}

// Model is the parent-model payload, the shape persisted as the
// <stem>.model.json sidecar.
type Model struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
