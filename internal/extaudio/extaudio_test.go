package extaudio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"aircheck/internal/testsupport"
)

func TestRunnerDisabledWithoutCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.ExtendedAudio.Command = ""

	runner := NewRunner(cfg, nil)
	if runner.Enabled() {
		t.Fatal("runner enabled without a command")
	}
	if got := runner.Analyze(context.Background(), "a.pcm", "b.pcm"); got != nil {
		t.Fatalf("Analyze = %+v, want nil when disabled", got)
	}
}

func writeAnalyzerScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analyzer.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write analyzer script: %v", err)
	}
	return path
}

func TestRunnerParsesCollaboratorOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.ExtendedAudio.Command = writeAnalyzerScript(t,
		`printf '{"text_similarity":0.92,"transcript_a":"hello","transcript_b":"hallo","separation_stats":{"stems":2}}'`)

	runner := NewRunner(cfg, nil)
	result := runner.Analyze(context.Background(), "a.pcm", "b.pcm")
	if result == nil {
		t.Fatal("expected result")
	}
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if result.TextSimilarity != 0.92 {
		t.Fatalf("TextSimilarity = %v, want 0.92", result.TextSimilarity)
	}
	if result.TranscriptA != "hello" || result.TranscriptB != "hallo" {
		t.Fatalf("transcripts = %q / %q", result.TranscriptA, result.TranscriptB)
	}
	if result.SeparationStats["stems"] == nil {
		t.Fatalf("separation stats lost: %+v", result.SeparationStats)
	}
}

func TestRunnerReceivesBothPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.ExtendedAudio.Command = writeAnalyzerScript(t,
		`printf '{"text_similarity":0.5,"transcript_a":"%s","transcript_b":"%s"}' "$1" "$2"`)

	runner := NewRunner(cfg, nil)
	result := runner.Analyze(context.Background(), "left.pcm", "right.pcm")
	if result == nil || result.Error != "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.TranscriptA != "left.pcm" || result.TranscriptB != "right.pcm" {
		t.Fatalf("paths not forwarded: %q / %q", result.TranscriptA, result.TranscriptB)
	}
}

func TestRunnerDegradesOnMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.ExtendedAudio.Command = "/nonexistent/analyzer --mode full"

	runner := NewRunner(cfg, nil)
	result := runner.Analyze(context.Background(), "a.pcm", "b.pcm")
	if result == nil {
		t.Fatal("expected degraded result, got nil")
	}
	if result.Error == "" {
		t.Fatal("degraded result missing error detail")
	}
	if result.TextSimilarity != 0 {
		t.Fatalf("degraded result carries similarity %v", result.TextSimilarity)
	}
}

func TestRunnerRejectsMalformedOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.ExtendedAudio.Command = "echo not-json"

	runner := NewRunner(cfg, nil)
	result := runner.Analyze(context.Background(), "a.pcm", "b.pcm")
	if result == nil || result.Error == "" {
		t.Fatalf("malformed output not surfaced: %+v", result)
	}
}

func TestRunnerRejectsOutOfRangeSimilarity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.ExtendedAudio.Command = `echo {"text_similarity":1.5}`

	runner := NewRunner(cfg, nil)
	result := runner.Analyze(context.Background(), "a.pcm", "b.pcm")
	if result == nil || result.Error == "" {
		t.Fatalf("out-of-range similarity not surfaced: %+v", result)
	}
}
