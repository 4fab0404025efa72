// Package workflow runs the daemon's dispatch loop: claim the oldest pending
// job, hand it to the worker pool, repeat until stopped.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"aircheck/internal/config"
	"aircheck/internal/logging"
	"aircheck/internal/progress"
	"aircheck/internal/queue"
	"aircheck/internal/workpool"
)

// Dispatcher is the pool surface the manager drives.
type Dispatcher interface {
	TryDispatch(ctx context.Context, job *queue.Job) bool
	InFlight() int
	Capacity() int
	Wait()
}

// Manager polls the queue and feeds the worker pool.
type Manager struct {
	cfg    *config.Config
	store  *queue.Store
	pool   Dispatcher
	hub    *progress.Hub
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

var _ Dispatcher = (*workpool.Pool)(nil)

func NewManager(cfg *config.Config, store *queue.Store, pool Dispatcher, hub *progress.Hub, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		store:  store,
		pool:   pool,
		hub:    hub,
		logger: logger.With(logging.String(logging.FieldComponent, "workflow")),
		done:   make(chan struct{}),
	}
}

// Start launches the dispatch loop.
func (m *Manager) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.loop(loopCtx)
}

// Stop halts dispatching and waits for in-flight jobs to finish.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
	m.pool.Wait()
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)

	pollInterval := time.Duration(m.cfg.Workflow.QueuePollInterval) * time.Second
	retryInterval := time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// Pick up queued work immediately on startup.
	m.dispatchReady(ctx, retryInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.dispatchReady(ctx, retryInterval)
		}
	}
}

// dispatchReady claims pending jobs while the pool has free slots.
func (m *Manager) dispatchReady(ctx context.Context, retryInterval time.Duration) {
	for m.pool.InFlight() < m.pool.Capacity() {
		if ctx.Err() != nil {
			return
		}

		job, err := m.store.ClaimNextPending(ctx)
		if err != nil {
			m.logger.Error("queue claim failed, backing off",
				logging.Error(err),
				logging.Duration("retry_in", retryInterval))
			select {
			case <-ctx.Done():
			case <-time.After(retryInterval):
			}
			return
		}
		if job == nil {
			return
		}

		m.logger.Info("job claimed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String("comparison_type", string(job.ComparisonType)))
		if m.hub != nil {
			m.hub.Publish(job)
		}

		if !m.pool.TryDispatch(ctx, job) {
			// Only this goroutine fills slots, so a refusal here means the
			// pool is shutting down. The stale-processing sweep on the next
			// daemon start reconciles the job.
			m.logger.Warn("pool refused claimed job",
				logging.Int64(logging.FieldJobID, job.ID))
			return
		}
	}
}
