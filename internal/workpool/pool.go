// Package workpool runs comparison jobs in isolated worker subprocesses so a
// crashing decode or analysis can never take the daemon down. The pool bounds
// concurrency, enforces per-job timeouts, and relays streamed progress to the
// store and the progress hub.
package workpool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"aircheck/internal/config"
	"aircheck/internal/logging"
	"aircheck/internal/progress"
	"aircheck/internal/queue"
)

// scanBufferSize caps one protocol line; progress lines are small but error
// detail can carry tool output.
const scanBufferSize = 256 * 1024

// Pool dispatches claimed jobs to worker subprocesses.
type Pool struct {
	cfg    *config.Config
	store  *queue.Store
	hub    *progress.Hub
	logger *slog.Logger

	slots chan struct{}
	wg    sync.WaitGroup

	// newWorkerCommand builds the subprocess for one job. Overridable for tests.
	newWorkerCommand func(ctx context.Context, jobID int64) *exec.Cmd
}

func NewPool(cfg *config.Config, store *queue.Store, hub *progress.Hub, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	slots := cfg.Comparison.MaxConcurrentJobs
	if slots < 1 {
		slots = 1
	}
	pool := &Pool{
		cfg:    cfg,
		store:  store,
		hub:    hub,
		logger: logger,
		slots:  make(chan struct{}, slots),
	}
	pool.newWorkerCommand = func(ctx context.Context, jobID int64) *exec.Cmd {
		executable, err := os.Executable()
		if err != nil {
			executable = os.Args[0]
		}
		cmd := exec.CommandContext(ctx, executable, "worker", "--job-id", strconv.FormatInt(jobID, 10))
		cmd.Stderr = os.Stderr
		return cmd
	}
	return pool
}

// Capacity returns the maximum number of concurrent workers.
func (p *Pool) Capacity() int {
	return cap(p.slots)
}

// InFlight returns the number of jobs currently running.
func (p *Pool) InFlight() int {
	return len(p.slots)
}

// TryDispatch starts a worker for the job if a slot is free. It returns false
// when the pool is saturated; the job stays claimed and the caller retries.
func (p *Pool) TryDispatch(ctx context.Context, job *queue.Job) bool {
	select {
	case p.slots <- struct{}{}:
	default:
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.slots }()
		p.runJob(ctx, job)
	}()
	return true
}

// Wait blocks until every in-flight worker has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) runJob(ctx context.Context, job *queue.Job) {
	logger := p.logger.With(logging.Int64(logging.FieldJobID, job.ID))

	timeout := time.Duration(p.cfg.Comparison.JobTimeoutSeconds) * time.Second
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := p.newWorkerCommand(runCtx, job.ID)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.failJob(ctx, job, fmt.Sprintf("failed to attach worker stdout: %v", err), logger)
		return
	}
	if err := cmd.Start(); err != nil {
		p.failJob(ctx, job, fmt.Sprintf("failed to start worker: %v", err), logger)
		return
	}
	logger.Info("worker started", logging.Int("pid", cmd.Process.Pid))

	var workerError string
	var sawResult bool
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 4096), scanBufferSize)
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			logger.Debug("discarding malformed worker line", logging.Error(err))
			continue
		}
		switch msg.Type {
		case MessageProgress:
			p.relayProgress(ctx, job, msg, logger)
		case MessageResult:
			sawResult = true
		case MessageError:
			workerError = msg.Error
		}
	}

	waitErr := cmd.Wait()
	switch {
	case waitErr == nil && sawResult:
		p.publishCurrent(ctx, job.ID)
		logger.Info("worker finished")
	case workerError != "":
		p.failJob(ctx, job, workerError, logger)
	case runCtx.Err() == context.DeadlineExceeded:
		p.failJob(ctx, job, fmt.Sprintf("job timed out after %s", timeout), logger)
	case waitErr != nil:
		p.failJob(ctx, job, fmt.Sprintf("worker exited unexpectedly: %v", waitErr), logger)
	default:
		p.failJob(ctx, job, "worker exited without reporting a result", logger)
	}
}

// relayProgress persists the update and pushes it to live subscribers.
func (p *Pool) relayProgress(ctx context.Context, job *queue.Job, msg Message, logger *slog.Logger) {
	job.SetProgress(msg.Stage, msg.Message, msg.Percent)
	if err := p.store.UpdateProgress(ctx, job); err != nil {
		logger.Warn("progress update not persisted", logging.Error(err))
	}
	if p.hub != nil {
		p.hub.Publish(job)
	}
}

func (p *Pool) failJob(ctx context.Context, job *queue.Job, message string, logger *slog.Logger) {
	logger.Error("job failed", logging.String("reason", message))
	if err := p.store.MarkFailed(ctx, job.ID, message); err != nil {
		logger.Error("failure not persisted", logging.Error(err))
	}
	p.publishCurrent(ctx, job.ID)
}

// publishCurrent reloads terminal state from the store so subscribers see the
// authoritative status row, not the pool's stale copy.
func (p *Pool) publishCurrent(ctx context.Context, jobID int64) {
	if p.hub == nil {
		return
	}
	current, err := p.store.GetByID(ctx, jobID)
	if err != nil || current == nil {
		return
	}
	p.hub.Publish(current)
}
