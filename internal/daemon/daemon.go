// Package daemon ties the long-running pieces together: single-instance
// locking, the queue store, the dispatch loop, artifact retention, and the
// HTTP API with its live progress feed.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"aircheck/internal/artifacts"
	"aircheck/internal/config"
	"aircheck/internal/logging"
	"aircheck/internal/progress"
	"aircheck/internal/queue"
	"aircheck/internal/workflow"
)

const artifactSweepInterval = time.Hour

// Daemon coordinates the background services and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	workflow  *workflow.Manager
	hub       *progress.Hub
	artifacts *artifacts.Store
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running     atomic.Bool
	cancel      context.CancelFunc
	sweeperDone chan struct{}
}

// Status summarizes daemon runtime information.
type Status struct {
	Running      bool
	QueueDBPath  string
	LockFilePath string
	Subscribers  int
	Queue        map[queue.Status]int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, wf *workflow.Manager, hub *progress.Hub, artifactStore *artifacts.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil || hub == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and progress hub")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:     store,
		workflow:  wf,
		hub:       hub,
		artifacts: artifactStore,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the instance lock, reconciles jobs orphaned by a previous
// shutdown, and launches the dispatch loop and API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another aircheck daemon instance is already running")
	}

	stale, err := d.store.FailStaleProcessing(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reconcile stale jobs: %w", err)
	}
	if stale > 0 {
		d.logger.Warn("failed jobs orphaned by previous shutdown", logging.Int64("count", stale))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.workflow.Start(runCtx)
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			cancel()
			d.workflow.Stop()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.sweeperDone = make(chan struct{})
	go d.sweepArtifacts(runCtx)

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("database", d.store.Path()),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts the services down in reverse order and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.running.Store(false)

	if d.cancel != nil {
		d.cancel()
	}
	if d.api != nil {
		d.api.stop()
	}
	d.workflow.Stop()
	d.hub.Shutdown()
	<-d.sweeperDone

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("lock release failed", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Running reports whether Start has completed and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status gathers runtime information for the status endpoint.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("queue stats unavailable", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Subscribers:  d.hub.SubscriberCount(),
		Queue:        stats,
	}
}

// sweepArtifacts enforces artifact retention on a fixed cadence.
func (d *Daemon) sweepArtifacts(ctx context.Context) {
	defer close(d.sweeperDone)
	if d.artifacts == nil {
		return
	}

	d.artifacts.Sweep()
	ticker := time.NewTicker(artifactSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.artifacts.Sweep()
		}
	}
}
