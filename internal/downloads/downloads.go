package downloads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"modelkeep/internal/catalog"
	"modelkeep/internal/config"
	"modelkeep/internal/events"
	"modelkeep/internal/fileutil"
	"modelkeep/internal/logging"
	"modelkeep/internal/notifications"
)

// ValidationError rejects a download request before any side effect occurs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Transferrer fetches a remote file into place, verifying its content hash.
type Transferrer interface {
	DownloadFile(ctx context.Context, rawURL, dest, wantHash string, maxRetries int) error
}

// MetadataFetcher writes sidecar metadata files next to a downloaded model.
type MetadataFetcher interface {
	FetchSidecars(ctx context.Context, modelPath, hash string) error
}

// Ingester registers a single file with the catalog.
type Ingester interface {
	IngestFile(ctx context.Context, absPath string) (int64, error)
}

// Request describes one download. Dest is the target directory; Name the
// filename to write inside it. Hash, when set, must match the transferred
// content. ModelType records Dest as the category's default directory.
type Request struct {
	URL       string
	Name      string
	Hash      string
	Dest      string
	ModelType string
}

// Orchestrator validates download requests and runs each accepted one as a
// detached background unit. There is no cancellation handle per download;
// inflight transfers stop when the daemon context is cancelled.
type Orchestrator struct {
	cfg        *config.Config
	configPath string
	store      *catalog.Store
	transfer   Transferrer
	metadata   MetadataFetcher
	ingester   Ingester
	hub        *events.Hub
	notifier   notifications.Service
	logger     *slog.Logger
}

// New constructs a download orchestrator. configPath may be empty, in which
// case chosen download directories are not persisted across restarts.
func New(
	cfg *config.Config,
	configPath string,
	store *catalog.Store,
	transfer Transferrer,
	metadata MetadataFetcher,
	ingester Ingester,
	hub *events.Hub,
	notifier notifications.Service,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		configPath: configPath,
		store:      store,
		transfer:   transfer,
		metadata:   metadata,
		ingester:   ingester,
		hub:        hub,
		notifier:   notifier,
		logger:     logging.WithComponent(logger, "downloads"),
	}
}

// Start validates req and, on success, launches the transfer in the
// background. ctx must be the daemon's lifetime context, not a request
// context, or the transfer dies with the HTTP request that triggered it.
func (o *Orchestrator) Start(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.URL) == "" {
		return &ValidationError{Reason: "download url is required"}
	}
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{Reason: "target filename is required"}
	}

	dest, err := o.resolveDest(req.Dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create destination %q: %w", dest, err)
	}

	if modelType := strings.ToLower(strings.TrimSpace(req.ModelType)); modelType != "" {
		o.rememberDownloadDir(modelType, dest)
	}

	id := uuid.NewString()
	o.logger.Info("download accepted",
		logging.String("id", id),
		logging.String("url", req.URL),
		logging.String("dest", dest))

	go o.run(ctx, id, req, filepath.Join(dest, req.Name))
	return nil
}

func (o *Orchestrator) run(ctx context.Context, id string, req Request, target string) {
	jobID, jobErr := o.store.CreateJob(ctx, fmt.Sprintf("Download %s", req.URL))
	if jobErr != nil {
		o.logger.Warn("create download job", logging.String("id", id), logging.Error(jobErr))
	}
	o.hub.Info("Downloading file %s: %s", req.Name, req.URL)

	if err := o.transfer.DownloadFile(ctx, req.URL, target, req.Hash, o.cfg.Civitai.MaxRetries); err != nil {
		o.finishJob(ctx, jobID, jobErr, err)
		o.hub.Error("Download of %s failed: %v", req.Name, err)
		o.notify(ctx, notifications.EventDownloadFailed, notifications.Payload{
			"name":  req.Name,
			"error": err.Error(),
		})
		o.logger.Error("download failed",
			logging.String("id", id),
			logging.String("url", req.URL),
			logging.Error(err))
		return
	}

	o.finishJob(ctx, jobID, jobErr, nil)
	o.hub.Info("Finished downloading %s", req.Name)
	o.notify(ctx, notifications.EventDownloadCompleted, notifications.Payload{
		"name": req.Name,
	})

	// Sidecars and ingest are best effort: the file is already in place and
	// the next library check picks it up either way.
	if err := o.metadata.FetchSidecars(ctx, target, req.Hash); err != nil {
		o.logger.Warn("fetch sidecars",
			logging.String("id", id),
			logging.String("path", target),
			logging.Error(err))
	}
	if _, err := o.ingester.IngestFile(ctx, target); err != nil {
		o.logger.Warn("ingest downloaded file",
			logging.String("id", id),
			logging.String("path", target),
			logging.Error(err))
	}
}

// SavedLocation suggests where a file of the given type should live. A known
// content hash wins: the parent directory of the matching live entry is
// returned with isDownloaded=true. Otherwise the category's remembered
// download directory, and failing that a guess under the last configured
// root.
func (o *Orchestrator) SavedLocation(ctx context.Context, modelType, hash string) (string, bool, error) {
	if strings.TrimSpace(hash) != "" {
		entry, err := o.store.GetByHash(ctx, hash)
		switch {
		case err == nil:
			if root, ok := o.cfg.RootFor(entry.BaseLabel); ok {
				return filepath.Dir(filepath.Join(root, entry.Path)), true, nil
			}
		case !errors.Is(err, catalog.ErrNotFound):
			return "", false, err
		}
	}

	category := strings.ToLower(strings.TrimSpace(modelType))
	if dir, ok := o.cfg.Civitai.DownloadDirs[category]; ok && dir != "" {
		return dir, false, nil
	}
	return o.guessLocation(category), false, nil
}

func (o *Orchestrator) guessLocation(category string) string {
	labels := o.cfg.SortedLabels()
	if len(labels) == 0 {
		return ""
	}
	root, _ := o.cfg.RootFor(labels[len(labels)-1])

	var sub string
	switch category {
	case "lora":
		sub = "loras"
	case "hypernetwork":
		sub = "hypernetworks"
	case "checkpoint":
		sub = "checkpoints"
	default:
		sub = category
	}
	return filepath.Join(root, sub)
}

// resolveDest cleans the requested directory and refuses anything outside
// the configured roots. An empty Dest falls back to the first root in label
// order.
func (o *Orchestrator) resolveDest(dest string) (string, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		labels := o.cfg.SortedLabels()
		if len(labels) == 0 {
			return "", &ValidationError{Reason: "no library roots configured"}
		}
		root, _ := o.cfg.RootFor(labels[0])
		return root, nil
	}

	dest = filepath.Clean(dest)
	for _, label := range o.cfg.SortedLabels() {
		root, _ := o.cfg.RootFor(label)
		if fileutil.Inside(root, dest) {
			return dest, nil
		}
	}
	return "", &ValidationError{
		Reason: fmt.Sprintf("destination %q is outside the configured library roots", dest),
	}
}

func (o *Orchestrator) rememberDownloadDir(modelType, dest string) {
	if o.cfg.Civitai.DownloadDirs == nil {
		o.cfg.Civitai.DownloadDirs = make(map[string]string)
	}
	if o.cfg.Civitai.DownloadDirs[modelType] == dest {
		return
	}
	o.cfg.Civitai.DownloadDirs[modelType] = dest

	if o.configPath == "" {
		return
	}
	if err := o.cfg.Save(o.configPath); err != nil {
		o.logger.Warn("persist download dir",
			logging.String("model_type", modelType),
			logging.Error(err))
	}
}

func (o *Orchestrator) finishJob(ctx context.Context, jobID int64, createErr, opErr error) {
	if createErr != nil {
		return
	}
	state := catalog.JobSucceeded
	errText := ""
	if opErr != nil {
		state = catalog.JobFailed
		errText = opErr.Error()
	}
	if err := o.store.UpdateJob(ctx, jobID, errText, state); err != nil {
		o.logger.Warn("update job", logging.Int64("job", jobID), logging.Error(err))
	}
}

func (o *Orchestrator) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		o.logger.Warn("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
