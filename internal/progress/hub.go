// Package progress fans job status updates out to live subscribers and keeps
// a per-job snapshot so late subscribers see the current state immediately.
package progress

import (
	"log/slog"
	"sync"
	"time"

	"aircheck/internal/logging"
	"aircheck/internal/queue"
)

// Event is one progress update pushed to subscribers.
type Event struct {
	JobID         int64        `json:"job_id"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	Status        queue.Status `json:"status"`
	Stage         string       `json:"stage,omitempty"`
	Percent       float64      `json:"percent"`
	Message       string       `json:"message,omitempty"`
	ETASeconds    *float64     `json:"eta_seconds,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// Conn is one subscriber connection. Send must be safe to call from the hub
// goroutine; a failed Send gets the connection dropped.
type Conn interface {
	Send(Event) error
	Close() error
}

// Hub broadcasts progress events. Subscribers that fail to accept a send are
// removed without disturbing the publisher or other subscribers. Snapshots of
// terminal jobs are retained so a subscriber arriving after completion still
// receives the final state.
type Hub struct {
	mu          sync.Mutex
	subscribers map[Conn]map[int64]struct{}
	snapshots   map[int64]Event
	trackers    map[int64]*etaTracker
	logger      *slog.Logger
	now         func() time.Time
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		subscribers: make(map[Conn]map[int64]struct{}),
		snapshots:   make(map[int64]Event),
		trackers:    make(map[int64]*etaTracker),
		logger:      logger,
		now:         time.Now,
	}
}

// Subscribe registers a connection for the given job ids, or for every job
// when none are given, and replays the retained snapshot of each subscribed
// job so the subscriber does not start blind. A connection may subscribe to
// several jobs and a job may have several subscribers.
func (h *Hub) Subscribe(conn Conn, jobIDs ...int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var filter map[int64]struct{}
	if len(jobIDs) > 0 {
		filter = make(map[int64]struct{}, len(jobIDs))
		for _, id := range jobIDs {
			filter[id] = struct{}{}
		}
	}

	for jobID, event := range h.snapshots {
		if filter != nil {
			if _, wanted := filter[jobID]; !wanted {
				continue
			}
		}
		if err := conn.Send(event); err != nil {
			conn.Close()
			return
		}
	}
	h.subscribers[conn] = filter
}

// Unsubscribe removes and closes a connection.
func (h *Hub) Unsubscribe(conn Conn) {
	h.mu.Lock()
	_, present := h.subscribers[conn]
	delete(h.subscribers, conn)
	h.mu.Unlock()
	if present {
		conn.Close()
	}
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish derives an event from the job's current state and delivers it to
// the job's subscribers. The snapshot survives terminal states; a failed
// delivery drops only the affected subscriber.
func (h *Hub) Publish(job *queue.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	event := Event{
		JobID:         job.ID,
		CorrelationID: job.CorrelationID,
		Status:        job.Status,
		Stage:         job.ProgressStage,
		Percent:       job.ProgressPercent,
		Message:       job.ProgressMessage,
		ErrorMessage:  job.ErrorMessage,
		Timestamp:     now,
	}

	if job.Status == queue.StatusProcessing {
		tracker := h.trackers[job.ID]
		if tracker == nil {
			tracker = newETATracker(now)
			h.trackers[job.ID] = tracker
		}
		if eta, ok := tracker.update(job.ProgressPercent, now); ok {
			event.ETASeconds = &eta
		}
	}

	if job.Status.IsTerminal() {
		delete(h.trackers, job.ID)
	}
	h.snapshots[job.ID] = event

	for conn, filter := range h.subscribers {
		if filter != nil {
			if _, wanted := filter[job.ID]; !wanted {
				continue
			}
		}
		if err := conn.Send(event); err != nil {
			h.logger.Debug("dropping progress subscriber", logging.Error(err))
			delete(h.subscribers, conn)
			conn.Close()
		}
	}
}

// Forget discards the retained snapshot for a job that no longer exists.
func (h *Hub) Forget(jobID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.snapshots, jobID)
	delete(h.trackers, jobID)
}

// Shutdown closes every subscriber.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.subscribers {
		conn.Close()
		delete(h.subscribers, conn)
	}
}
