package queue_test

import (
	"context"
	"testing"

	"aircheck/internal/queue"
	"aircheck/internal/report"
	"aircheck/internal/sensitivity"
	"aircheck/internal/testsupport"
)

func TestNewJobFreezesPolicy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	policy := sensitivity.Resolve(sensitivity.LevelMedium, sensitivity.TypeFull)
	job, err := store.NewJob(ctx, "/media/master.mov", "/media/aired.ts",
		sensitivity.LevelMedium, sensitivity.TypeFull, policy)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("status = %s, want pending", job.Status)
	}
	if job.CorrelationID == "" {
		t.Fatal("expected correlation id to be assigned")
	}
	if job.Policy != policy {
		t.Fatalf("persisted policy %+v differs from resolved %+v", job.Policy, policy)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched == nil || fetched.Policy.SimilarityThreshold != 0.98 {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestNewJobRequiresPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	policy := sensitivity.Resolve(sensitivity.LevelLow, sensitivity.TypeFull)
	if _, err := store.NewJob(context.Background(), "", "/media/aired.ts",
		sensitivity.LevelLow, sensitivity.TypeFull, policy); err == nil {
		t.Fatal("expected error for missing acceptance path")
	}
}

func TestClaimNextPendingIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "/a1.mov", "/e1.ts")
	second := testsupport.NewJob(t, store, "/a2.mov", "/e2.ts")

	claimed, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest job %d, got %#v", first.ID, claimed)
	}
	if claimed.Status != queue.StatusProcessing {
		t.Fatalf("claimed status = %s, want processing", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Fatal("expected started_at to be set on claim")
	}

	next, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected second job, got %#v", next)
	}

	none, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("third claim: %v", err)
	}
	if none != nil {
		t.Fatalf("expected empty queue, got job %d", none.ID)
	}
}

func TestUpdateProgressIsMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/a.mov", "/e.ts")
	job, err := store.ClaimNextPending(ctx)
	if err != nil || job == nil {
		t.Fatalf("claim: %v %v", job, err)
	}

	job.SetProgress("comparing frames", "frame 15/30", 50)
	if err := store.UpdateProgress(ctx, job); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	// A stale lower percent must not move progress backwards.
	job.ProgressPercent = 25
	if err := store.UpdateProgress(ctx, job); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.ProgressPercent != 50 {
		t.Fatalf("progress regressed to %v, want 50", fetched.ProgressPercent)
	}
}

func TestMarkFailedIsTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/a.mov", "/e.ts")
	job, _ := store.ClaimNextPending(ctx)

	job.SetProgress("sampling frames", "", 25)
	if err := store.UpdateProgress(ctx, job); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "emission file unreadable"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", fetched.Status)
	}
	if fetched.ErrorMessage == "" {
		t.Fatal("failed job must carry a non-empty error message")
	}
	if fetched.ProgressPercent != 25 {
		t.Fatalf("progress should be frozen at 25, got %v", fetched.ProgressPercent)
	}
	if fetched.CompletedAt == nil {
		t.Fatal("expected completed_at on terminal state")
	}

	if err := store.MarkFailed(ctx, job.ID, "again"); err == nil {
		t.Fatal("expected error failing an already-terminal job")
	}

	rep, err := store.GetReport(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if rep != nil {
		t.Fatal("failed job must not carry a report")
	}
}

func TestSaveReportCompletesJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/a.mov", "/e.ts")
	job, _ := store.ClaimNextPending(ctx)

	units := []report.UnitResult{
		{Index: 0, TimestampSec: 0, Similarity: 1.0},
		{Index: 1, TimestampSec: 1, Similarity: 0.4, IsDifference: true, ArtifactPath: "/art/1.png"},
	}
	if err := store.AppendUnits(ctx, job.ID, units); err != nil {
		t.Fatalf("AppendUnits: %v", err)
	}

	video := &report.VideoResult{Units: units, TotalUnits: 2, DifferingUnits: 1, OverallSimilarity: 0.5}
	rep := report.Merge(video, nil)
	if err := store.SaveReport(ctx, job.ID, &rep); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed", fetched.Status)
	}
	if fetched.ProgressPercent != 100 {
		t.Fatalf("progress = %v, want 100", fetched.ProgressPercent)
	}

	stored, err := store.GetReport(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if stored == nil || stored.OverallSimilarity != 0.5 || stored.IsMatch {
		t.Fatalf("unexpected stored report: %#v", stored)
	}

	loaded, err := store.Units(ctx, job.ID)
	if err != nil {
		t.Fatalf("Units: %v", err)
	}
	if len(loaded) != 2 || !loaded[1].IsDifference || loaded[1].ArtifactPath != "/art/1.png" {
		t.Fatalf("unexpected unit results: %#v", loaded)
	}

	// Completing a job twice must fail: the first transition left processing.
	if err := store.SaveReport(ctx, job.ID, &rep); err == nil {
		t.Fatal("expected second SaveReport to fail")
	}
}

func TestFailStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/a1.mov", "/e1.ts")
	testsupport.NewJob(t, store, "/a2.mov", "/e2.ts")
	if _, err := store.ClaimNextPending(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	count, err := store.FailStaleProcessing(ctx)
	if err != nil {
		t.Fatalf("FailStaleProcessing: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 stale job failed, got %d", count)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusFailed] != 1 || stats[queue.StatusPending] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Pending "); !ok || status != queue.StatusPending {
		t.Fatalf("ParseStatus(Pending) = %q, %v", status, ok)
	}
	if _, ok := queue.ParseStatus("archived"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
