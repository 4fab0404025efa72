// Package sampler extracts aligned, equal-length sequences of comparable
// units (video frames or audio samples) from two source files. Extraction
// shells out to ffmpeg; alignment and resizing happen in-process so the
// comparison always runs in the acceptance side's native space.
package sampler

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"aircheck/internal/config"
	"aircheck/internal/logging"
	"aircheck/internal/sensitivity"
	"aircheck/internal/services"
)

// FramePair is one aligned frame comparison unit. The emission frame has
// already been resized to the acceptance frame's dimensions.
type FramePair struct {
	Index        int
	TimestampSec float64
	Acceptance   image.Image
	Emission     image.Image
}

// Sampler extracts comparison units from media files.
type Sampler struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs a Sampler.
func New(cfg *config.Config, logger *slog.Logger) *Sampler {
	return &Sampler{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "sampler"),
	}
}

// ExtractFramePairs samples both sources at the policy rate, capped at the
// policy max units, and returns aligned pairs trimmed to the shorter
// extracted sequence.
func (s *Sampler) ExtractFramePairs(ctx context.Context, acceptancePath, emissionPath string, policy sensitivity.Policy, workDir string) ([]FramePair, error) {
	acceptanceFrames, err := s.extractFrames(ctx, acceptancePath, policy, filepath.Join(workDir, "acceptance"))
	if err != nil {
		return nil, err
	}
	emissionFrames, err := s.extractFrames(ctx, emissionPath, policy, filepath.Join(workDir, "emission"))
	if err != nil {
		return nil, err
	}

	count := alignedLength(len(acceptanceFrames), len(emissionFrames), policy.MaxUnits)
	if count == 0 {
		return nil, services.Wrap(services.ErrMediaTool, "sampler", "align frames",
			"no overlapping frames extracted from sources", nil)
	}

	pairs := make([]FramePair, 0, count)
	for i := 0; i < count; i++ {
		acceptance := acceptanceFrames[i]
		emission := emissionFrames[i]
		if !acceptance.Bounds().Eq(emission.Bounds()) {
			emission = Resize(emission, acceptance.Bounds().Dx(), acceptance.Bounds().Dy())
		}
		pairs = append(pairs, FramePair{
			Index:        i,
			TimestampSec: float64(i) / policy.SamplingRate,
			Acceptance:   acceptance,
			Emission:     emission,
		})
	}

	s.logger.Debug("frame sampling complete",
		logging.Int("acceptance_frames", len(acceptanceFrames)),
		logging.Int("emission_frames", len(emissionFrames)),
		logging.Int("aligned_pairs", count),
	)
	return pairs, nil
}

func (s *Sampler) extractFrames(ctx context.Context, sourcePath string, policy sensitivity.Policy, frameDir string) ([]image.Image, error) {
	if err := os.MkdirAll(frameDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrMediaTool, "sampler", "prepare work dir", frameDir, err)
	}

	pattern := filepath.Join(frameDir, "frame_%05d.png")
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", sourcePath,
		"-vf", fmt.Sprintf("fps=%g", policy.SamplingRate),
		"-frames:v", fmt.Sprintf("%d", policy.MaxUnits),
		"-y", pattern,
	}
	cmd := exec.CommandContext(ctx, s.cfg.Comparison.FFmpegBinary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, services.Wrap(services.ErrMediaTool, "sampler", "extract frames",
			fmt.Sprintf("%s: %s", sourcePath, strings.TrimSpace(string(output))), err)
	}

	frames, err := loadFrames(frameDir)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, services.Wrap(services.ErrMediaTool, "sampler", "extract frames",
			fmt.Sprintf("%s yielded zero frames", sourcePath), nil)
	}
	return frames, nil
}

func loadFrames(frameDir string) ([]image.Image, error) {
	entries, err := os.ReadDir(frameDir)
	if err != nil {
		return nil, services.Wrap(services.ErrMediaTool, "sampler", "read frame dir", frameDir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	frames := make([]image.Image, 0, len(names))
	for _, name := range names {
		file, err := os.Open(filepath.Join(frameDir, name))
		if err != nil {
			return nil, services.Wrap(services.ErrMediaTool, "sampler", "open frame", name, err)
		}
		img, err := png.Decode(file)
		file.Close()
		if err != nil {
			return nil, services.Wrap(services.ErrMediaTool, "sampler", "decode frame", name, err)
		}
		frames = append(frames, img)
	}
	return frames, nil
}

// alignedLength bounds both sequences to the shorter one and the policy cap.
func alignedLength(a, b, maxUnits int) int {
	n := a
	if b < n {
		n = b
	}
	if maxUnits > 0 && maxUnits < n {
		n = maxUnits
	}
	if n < 0 {
		return 0
	}
	return n
}

// AlignedLength exposes the trimming rule for callers and tests.
func AlignedLength(a, b, maxUnits int) int {
	return alignedLength(a, b, maxUnits)
}
