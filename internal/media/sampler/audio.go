package sampler

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"aircheck/internal/services"
)

// ExtractAudio decodes one source to mono PCM at the configured sample rate
// and returns normalized samples in [-1, 1].
func (s *Sampler) ExtractAudio(ctx context.Context, sourcePath, workDir, label string) ([]float64, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrMediaTool, "sampler", "prepare work dir", workDir, err)
	}

	pcmPath := filepath.Join(workDir, label+".pcm")
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", sourcePath,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", s.cfg.Comparison.AudioSampleRate),
		"-f", "s16le",
		"-y", pcmPath,
	}
	cmd := exec.CommandContext(ctx, s.cfg.Comparison.FFmpegBinary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, services.Wrap(services.ErrMediaTool, "sampler", "decode audio",
			fmt.Sprintf("%s: %s", sourcePath, strings.TrimSpace(string(output))), err)
	}

	raw, err := os.ReadFile(pcmPath)
	if err != nil {
		return nil, services.Wrap(services.ErrMediaTool, "sampler", "read pcm", pcmPath, err)
	}
	samples := DecodePCM(raw)
	if len(samples) == 0 {
		return nil, services.Wrap(services.ErrMediaTool, "sampler", "decode audio",
			fmt.Sprintf("%s yielded zero audio samples", sourcePath), nil)
	}
	return samples, nil
}

// DecodePCM converts signed 16-bit little-endian PCM bytes into normalized
// float samples. A trailing odd byte is ignored.
func DecodePCM(raw []byte) []float64 {
	count := len(raw) / 2
	samples := make([]float64, count)
	for i := 0; i < count; i++ {
		value := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float64(value) / 32768.0
	}
	return samples
}
