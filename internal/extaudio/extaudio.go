// Package extaudio shells out to an optional external analyzer that performs
// source separation and speech transcription, producing the extended audio
// sub-report. The collaborator is opaque: aircheck passes the two audio paths
// and reads one JSON document from stdout.
package extaudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"aircheck/internal/config"
	"aircheck/internal/logging"
	"aircheck/internal/report"
	"aircheck/internal/services"
)

// Runner invokes the configured extended analysis command.
type Runner struct {
	command string
	timeout time.Duration
	logger  *slog.Logger
}

func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		command: cfg.ExtendedAudio.Command,
		timeout: time.Duration(cfg.ExtendedAudio.TimeoutSeconds) * time.Second,
		logger:  logger,
	}
}

// Enabled reports whether an analyzer command is configured.
func (r *Runner) Enabled() bool {
	return strings.TrimSpace(r.command) != ""
}

type collaboratorOutput struct {
	TextSimilarity  float64        `json:"text_similarity"`
	TranscriptA     string         `json:"transcript_a"`
	TranscriptB     string         `json:"transcript_b"`
	SeparationStats map[string]any `json:"separation_stats"`
}

// Analyze runs the collaborator against both audio files. Failures come back
// as a degraded ExtendedResult carrying the error, never as a job failure.
func (r *Runner) Analyze(ctx context.Context, acceptanceAudio, emissionAudio string) *report.ExtendedResult {
	if !r.Enabled() {
		return nil
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	output, err := r.run(runCtx, acceptanceAudio, emissionAudio)
	if err != nil {
		wrapped := services.Wrap(services.ErrMediaTool, "extaudio", "analyze", "extended audio analysis failed", err)
		r.logger.Warn("extended audio analysis degraded", logging.Error(wrapped))
		return &report.ExtendedResult{Error: wrapped.Error()}
	}

	return &report.ExtendedResult{
		TextSimilarity:  output.TextSimilarity,
		TranscriptA:     output.TranscriptA,
		TranscriptB:     output.TranscriptB,
		SeparationStats: output.SeparationStats,
	}
}

func (r *Runner) run(ctx context.Context, acceptanceAudio, emissionAudio string) (*collaboratorOutput, error) {
	parts := strings.Fields(r.command)
	args := append(parts[1:], acceptanceAudio, emissionAudio)

	cmd := exec.CommandContext(ctx, parts[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: analyzer exceeded %s", services.ErrTimeout, r.timeout)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("analyzer failed: %v: %s", err, detail)
		}
		return nil, fmt.Errorf("analyzer failed: %w", err)
	}

	var output collaboratorOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, fmt.Errorf("malformed analyzer output: %w", err)
	}
	if output.TextSimilarity < 0 || output.TextSimilarity > 1 {
		return nil, fmt.Errorf("analyzer text similarity %v outside [0,1]", output.TextSimilarity)
	}
	return &output, nil
}
