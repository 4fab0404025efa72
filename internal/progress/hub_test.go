package progress

import (
	"errors"
	"testing"
	"time"

	"aircheck/internal/queue"
)

type recordingConn struct {
	events  []Event
	sendErr error
	closed  bool
}

func (c *recordingConn) Send(event Event) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.events = append(c.events, event)
	return nil
}

func (c *recordingConn) Close() error {
	c.closed = true
	return nil
}

func processingJob(id int64, percent float64) *queue.Job {
	return &queue.Job{
		ID:              id,
		CorrelationID:   "corr",
		Status:          queue.StatusProcessing,
		ProgressStage:   "video",
		ProgressPercent: percent,
		ProgressMessage: "comparing",
	}
}

func TestPublishBroadcasts(t *testing.T) {
	hub := NewHub(nil)
	conn := &recordingConn{}
	hub.Subscribe(conn)

	hub.Publish(processingJob(1, 25))

	if len(conn.events) != 1 {
		t.Fatalf("events = %d, want 1", len(conn.events))
	}
	event := conn.events[0]
	if event.JobID != 1 || event.Percent != 25 || event.Status != queue.StatusProcessing {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestLateSubscriberGetsSnapshot(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish(processingJob(1, 25))
	hub.Publish(processingJob(2, 50))

	late := &recordingConn{}
	hub.Subscribe(late)

	if len(late.events) != 2 {
		t.Fatalf("snapshot events = %d, want 2", len(late.events))
	}
	seen := map[int64]float64{}
	for _, event := range late.events {
		seen[event.JobID] = event.Percent
	}
	if seen[1] != 25 || seen[2] != 50 {
		t.Fatalf("snapshot state = %+v", seen)
	}
}

func TestLateSubscriberSeesCompletedJob(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish(processingJob(1, 50))

	done := processingJob(1, 100)
	done.Status = queue.StatusCompleted
	done.ProgressStage = "completed"
	hub.Publish(done)

	late := &recordingConn{}
	hub.Subscribe(late, 1)
	if len(late.events) != 1 {
		t.Fatalf("snapshot events = %d, want 1", len(late.events))
	}
	event := late.events[0]
	if event.Percent != 100 || event.Stage != "completed" || event.Status != queue.StatusCompleted {
		t.Fatalf("terminal snapshot = %+v", event)
	}
}

func TestSubscribeFiltersByJob(t *testing.T) {
	hub := NewHub(nil)
	watcher := &recordingConn{}
	hub.Subscribe(watcher, 2)

	hub.Publish(processingJob(1, 25))
	hub.Publish(processingJob(2, 40))

	if len(watcher.events) != 1 {
		t.Fatalf("filtered events = %d, want 1", len(watcher.events))
	}
	if watcher.events[0].JobID != 2 {
		t.Fatalf("filtered subscriber saw job %d", watcher.events[0].JobID)
	}
}

func TestForgetDropsSnapshot(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish(processingJob(1, 50))
	hub.Forget(1)

	late := &recordingConn{}
	hub.Subscribe(late)
	if len(late.events) != 0 {
		t.Fatalf("forgotten job replayed to late subscriber: %+v", late.events)
	}
}

func TestFailedSendDropsOnlyThatSubscriber(t *testing.T) {
	hub := NewHub(nil)
	broken := &recordingConn{sendErr: errors.New("gone")}
	healthy := &recordingConn{}
	hub.Subscribe(broken)
	hub.Subscribe(healthy)

	hub.Publish(processingJob(1, 10))

	if !broken.closed {
		t.Fatal("broken subscriber not closed")
	}
	if hub.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", hub.SubscriberCount())
	}
	if len(healthy.events) != 1 {
		t.Fatalf("healthy subscriber events = %d, want 1", len(healthy.events))
	}

	hub.Publish(processingJob(1, 20))
	if len(healthy.events) != 2 {
		t.Fatalf("broadcast stopped after drop: %d events", len(healthy.events))
	}
}

func TestUnsubscribeCloses(t *testing.T) {
	hub := NewHub(nil)
	conn := &recordingConn{}
	hub.Subscribe(conn)
	hub.Unsubscribe(conn)

	if !conn.closed {
		t.Fatal("connection not closed on unsubscribe")
	}
	if hub.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", hub.SubscriberCount())
	}
}

func TestETAAppearsAfterProgress(t *testing.T) {
	hub := NewHub(nil)
	clock := time.Unix(1000, 0)
	hub.now = func() time.Time { return clock }

	conn := &recordingConn{}
	hub.Subscribe(conn)

	hub.Publish(processingJob(1, 0))
	clock = clock.Add(10 * time.Second)
	hub.Publish(processingJob(1, 25))

	event := conn.events[1]
	if event.ETASeconds == nil {
		t.Fatal("ETA missing after measurable progress")
	}
	// 25% in 10s projects 30s remaining.
	if *event.ETASeconds < 25 || *event.ETASeconds > 35 {
		t.Fatalf("ETA = %v, want ~30s", *event.ETASeconds)
	}
}

func TestETACorrectsForSlowerStage(t *testing.T) {
	tracker := newETATracker(time.Unix(0, 0))

	// Fast stage: 25% in 5s.
	tracker.update(25, time.Unix(5, 0))
	fastETA, ok := tracker.remaining(25)
	if !ok {
		t.Fatal("no ETA after first stage")
	}

	// Slow stage: 10% in 20s. The projection must lengthen.
	slowETA, ok := tracker.update(35, time.Unix(25, 0))
	if !ok {
		t.Fatal("no ETA after slow stage")
	}
	perPercentFast := fastETA / 75
	perPercentSlow := slowETA / 65
	if perPercentSlow <= perPercentFast {
		t.Fatalf("ETA rate did not correct: fast %.2f s/%%, slow %.2f s/%%", perPercentFast, perPercentSlow)
	}
}

func TestETATrackerCompleteSignalsZero(t *testing.T) {
	tracker := newETATracker(time.Unix(0, 0))
	tracker.update(50, time.Unix(10, 0))
	eta, ok := tracker.update(100, time.Unix(20, 0))
	if !ok || eta != 0 {
		t.Fatalf("completion ETA = %v/%v, want 0/true", eta, ok)
	}
}
