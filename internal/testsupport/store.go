package testsupport

import (
	"context"
	"testing"

	"aircheck/internal/config"
	"aircheck/internal/queue"
	"aircheck/internal/sensitivity"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a pending medium-sensitivity job for tests.
func NewJob(t testing.TB, store *queue.Store, acceptancePath, emissionPath string) *queue.Job {
	t.Helper()

	policy := sensitivity.Resolve(sensitivity.LevelMedium, sensitivity.TypeFull)
	job, err := store.NewJob(context.Background(), acceptancePath, emissionPath,
		sensitivity.LevelMedium, sensitivity.TypeFull, policy)
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
