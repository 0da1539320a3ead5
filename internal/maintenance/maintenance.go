package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"modelkeep/internal/catalog"
	"modelkeep/internal/config"
	"modelkeep/internal/events"
	"modelkeep/internal/fileutil"
	"modelkeep/internal/logging"
	"modelkeep/internal/notifications"
	"modelkeep/internal/scanner"
)

// TrashDir is the per-root directory removed entries are moved into.
const TrashDir = ".trash"

// ErrBusy reports that another maintenance operation holds the slot.
var ErrBusy = errors.New("maintenance already running")

// Manager serializes catalog upkeep. Concurrent scans are unsafe (a second
// begin-scan would clear liveness mid-walk), so every operation competes for
// one slot and reports ErrBusy instead of queueing.
type Manager struct {
	mu sync.Mutex

	cfg      *config.Config
	store    *catalog.Store
	scanner  *scanner.Scanner
	hub      *events.Hub
	notifier notifications.Service
	logger   *slog.Logger
}

// New constructs a maintenance manager.
func New(cfg *config.Config, store *catalog.Store, sc *scanner.Scanner, hub *events.Hub, notifier notifications.Service, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		scanner:  sc,
		hub:      hub,
		notifier: notifier,
		logger:   logging.WithComponent(logger, "maintenance"),
	}
}

// Check runs the mark phase synchronously: liveness is cleared on every live
// entry, then every root is walked and observed. Sweep is a separate
// operation so operators can inspect the catalog between the phases.
func (m *Manager) Check(ctx context.Context) error {
	if !m.mu.TryLock() {
		return ErrBusy
	}
	defer m.mu.Unlock()
	return m.check(ctx)
}

// StartCheck launches the mark phase in the background, holding the
// maintenance slot until it completes. Returns ErrBusy without side effects
// when another operation is running.
func (m *Manager) StartCheck(ctx context.Context) error {
	if !m.mu.TryLock() {
		return ErrBusy
	}
	go func() {
		defer m.mu.Unlock()
		if err := m.check(ctx); err != nil {
			m.logger.Error("check failed", logging.Error(err))
		}
	}()
	return nil
}

// Clean runs the sweep phase synchronously and returns the number of entries
// removed.
func (m *Manager) Clean(ctx context.Context) (int64, error) {
	if !m.mu.TryLock() {
		return 0, ErrBusy
	}
	defer m.mu.Unlock()
	return m.clean(ctx)
}

// StartClean launches the sweep phase in the background.
func (m *Manager) StartClean(ctx context.Context) error {
	if !m.mu.TryLock() {
		return ErrBusy
	}
	go func() {
		defer m.mu.Unlock()
		if _, err := m.clean(ctx); err != nil {
			m.logger.Error("clean failed", logging.Error(err))
		}
	}()
	return nil
}

// Remove soft-deletes the listed entries and moves their files (same-stem
// siblings plus the .model.json sidecar) into the root's trash directory.
// Per-entry failures are logged and skipped; the batch always completes.
func (m *Manager) Remove(ctx context.Context, ids []int64) error {
	if !m.mu.TryLock() {
		return ErrBusy
	}
	defer m.mu.Unlock()

	for _, id := range ids {
		if err := m.removeOne(ctx, id); err != nil {
			m.logger.Warn("remove entry failed", logging.Int64("id", id), logging.Error(err))
		}
	}
	return nil
}

func (m *Manager) check(ctx context.Context) error {
	jobID, jobErr := m.store.CreateJob(ctx, "Check library")
	if jobErr != nil {
		m.logger.Warn("create check job", logging.Error(jobErr))
	}
	m.hub.Info("Checking library")

	if err := m.store.BeginScan(ctx); err != nil {
		m.finishJob(ctx, jobID, jobErr, err)
		m.hub.Error("Check failed: %v", err)
		return err
	}

	// Per-root walk so every root reports progress and one failing root does
	// not hide the others.
	observed := 0
	var errs []error
	for _, label := range m.cfg.SortedLabels() {
		count, err := m.scanner.ScanRoot(ctx, label)
		if err != nil {
			errs = append(errs, err)
			m.hub.Warn("Scan of %s failed: %v", label, err)
			continue
		}
		observed += count
		m.hub.Info("Scanned %s: %d files", label, count)
	}
	if err := errors.Join(errs...); err != nil {
		m.finishJob(ctx, jobID, jobErr, err)
		m.hub.Error("Check failed: %v", err)
		m.notifyError(ctx, "scan", err)
		return err
	}

	m.finishJob(ctx, jobID, jobErr, nil)
	m.hub.Info("Check complete: %d files observed", observed)
	m.notify(ctx, notifications.EventScanCompleted, notifications.Payload{
		"observed": strconv.Itoa(observed),
	})
	return nil
}

func (m *Manager) clean(ctx context.Context) (int64, error) {
	jobID, jobErr := m.store.CreateJob(ctx, "Clean library")
	if jobErr != nil {
		m.logger.Warn("create clean job", logging.Error(jobErr))
	}
	m.hub.Info("Cleaning library")

	removed, err := m.store.Sweep(ctx)
	if err != nil {
		m.finishJob(ctx, jobID, jobErr, err)
		m.hub.Error("Clean failed: %v", err)
		m.notifyError(ctx, "clean", err)
		return 0, err
	}

	m.finishJob(ctx, jobID, jobErr, nil)
	m.hub.Info("Removed %d obsolete entries", removed)
	m.notify(ctx, notifications.EventCleanCompleted, notifications.Payload{
		"removed": strconv.FormatInt(removed, 10),
	})
	return removed, nil
}

func (m *Manager) removeOne(ctx context.Context, id int64) error {
	rel, label, err := m.store.SoftDelete(ctx, id)
	if err != nil {
		return err
	}

	root, ok := m.cfg.RootFor(label)
	if !ok {
		return fmt.Errorf("no root configured for label %q", label)
	}

	modelFile := filepath.Join(root, rel)
	trash := filepath.Join(root, TrashDir)
	if err := os.MkdirAll(trash, 0o755); err != nil {
		return fmt.Errorf("create trash dir: %w", err)
	}

	files, err := fileutil.SameStemFiles(modelFile)
	if err != nil {
		return err
	}
	if err := fileutil.MoveToDir(files, trash); err != nil {
		return err
	}
	// The dotted sidecar shares the stem only up to its extra extension.
	if err := fileutil.MoveToDir([]string{fileutil.SwapExt(modelFile, "model.json")}, trash); err != nil {
		return err
	}

	m.hub.Info("Removed entry %d (%s)", id, rel)
	return nil
}

// finishJob records the terminal state for the operation's job row. createErr
// tells us the job row never existed, in which case there is nothing to
// update.
func (m *Manager) finishJob(ctx context.Context, jobID int64, createErr, opErr error) {
	if createErr != nil {
		return
	}
	state := catalog.JobSucceeded
	errText := ""
	if opErr != nil {
		state = catalog.JobFailed
		errText = opErr.Error()
	}
	if err := m.store.UpdateJob(ctx, jobID, errText, state); err != nil {
		m.logger.Warn("update job", logging.Int64("job", jobID), logging.Error(err))
	}
}

func (m *Manager) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		m.logger.Warn("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func (m *Manager) notifyError(ctx context.Context, contextLabel string, err error) {
	m.notify(ctx, notifications.EventError, notifications.Payload{
		"context": contextLabel,
		"error":   err.Error(),
	})
}
