package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"modelkeep/internal/catalog"
	"modelkeep/internal/config"
	"modelkeep/internal/downloads"
	"modelkeep/internal/events"
	"modelkeep/internal/logging"
	"modelkeep/internal/maintenance"
	"modelkeep/internal/notifications"
	"modelkeep/internal/scanner"
	"modelkeep/internal/server"
	"modelkeep/internal/services/civitai"
)

// Daemon owns the service graph and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *catalog.Store

	hub    *events.Hub
	maint  *maintenance.Manager
	server *server.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs the daemon and its service graph. configPath is where the
// download orchestrator persists chosen directories; it may be empty.
func New(cfg *config.Config, configPath string, store *catalog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	hub := events.New(logger)
	notifier := notifications.NewService(cfg)
	sc := scanner.New(cfg, store, logger)
	maint := maintenance.New(cfg, store, sc, hub, notifier, logger)

	remote := civitai.NewFromConfig(cfg)
	dl := downloads.New(cfg, configPath, store, remote, remote, sc, hub, notifier, logger)

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    store,
		hub:      hub,
		maint:    maint,
		server:   server.New(cfg, store, maint, dl, hub, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and brings the services up. When
// scan_on_start is enabled a library check runs in the background once the
// API is listening.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another modelkeep daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.hub.Start(d.ctx)

	if err := d.server.Start(d.ctx); err != nil {
		d.hub.Stop()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start http server: %w", err)
	}

	if d.cfg.Scanner.ScanOnStart {
		go func() {
			if err := d.maint.Check(d.ctx); err != nil && !errors.Is(err, maintenance.ErrBusy) {
				d.logger.Error("startup scan failed", logging.Error(err))
			}
		}()
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.Addr()))
	return nil
}

// Stop shuts the services down and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	d.hub.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the catalog store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has completed without a matching Stop.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Addr returns the HTTP listener address once started.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}
