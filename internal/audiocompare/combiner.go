// Package audiocompare measures whether two mono audio signals carry the
// same programme: loudness conformance, timbral similarity, and time
// alignment, each stage degrading independently so a single failed
// measurement never aborts the whole analysis.
package audiocompare

import (
	"context"
	"fmt"
	"log/slog"

	"aircheck/internal/config"
	"aircheck/internal/logging"
	"aircheck/internal/report"
)

// Blend weights for the composite similarity score. Timbre dominates because
// broadcast re-encodes shift absolute spectral energy without changing the
// programme.
const (
	mfccWeight     = 0.7
	spectralWeight = 0.3
)

// Combiner runs the audio comparison stages and folds their outcomes into a
// single AudioResult.
type Combiner struct {
	threshold      float64
	sampleRate     int
	segmentSeconds float64
	logger         *slog.Logger
}

func NewCombiner(cfg *config.Config, logger *slog.Logger) *Combiner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Combiner{
		threshold:      cfg.Comparison.AudioMatchThreshold,
		sampleRate:     cfg.Comparison.AudioSampleRate,
		segmentSeconds: cfg.Comparison.SegmentSeconds,
		logger:         logger,
	}
}

// Analyze compares the decoded signals. Loudness and similarity failures are
// recorded in the result instead of returned; the returned error is reserved
// for context cancellation.
func (c *Combiner) Analyze(ctx context.Context, acceptance, emission []float64) (*report.AudioResult, error) {
	result := &report.AudioResult{}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	offset := recoverOffsetSafely(acceptance, emission, c.sampleRate)
	result.OffsetSeconds = offset
	alignedA, alignedB := AlignByOffset(acceptance, emission, offset, c.sampleRate)

	loudness, err := CompareLoudness(alignedA, alignedB, c.sampleRate)
	if err != nil {
		c.logger.Warn("loudness measurement unavailable", logging.Error(err))
		result.Loudness = report.LoudnessResult{Error: err.Error()}
		result.HasDifferences = true
	} else {
		result.Loudness = loudness
		if !loudness.IsLUFSMatch || !loudness.IsPeakMatch {
			result.HasDifferences = true
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	similarity, err := c.segmentedSimilarity(ctx, alignedA, alignedB)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("audio similarity unavailable", logging.Error(err))
		result.SimilarityError = err.Error()
		result.HasDifferences = true
		return result, nil
	}

	result.Similarity = similarity
	if similarity < c.threshold {
		result.HasDifferences = true
	}
	return result, nil
}

// segmentedSimilarity splits both signals into aligned fixed-length segments,
// scores each with the MFCC/spectral blend, and averages.
func (c *Combiner) segmentedSimilarity(ctx context.Context, a, b []float64) (float64, error) {
	segmentSamples := int(c.segmentSeconds * float64(c.sampleRate))
	if segmentSamples < mfccFrameSize {
		segmentSamples = mfccFrameSize
	}
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	if length < segmentSamples {
		return 0, fmt.Errorf("aligned signal too short: %d samples, need %d", length, segmentSamples)
	}

	var total float64
	segments := 0
	for start := 0; start+segmentSamples <= length; start += segmentSamples {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		total += segmentSimilarity(a[start:start+segmentSamples], b[start:start+segmentSamples], c.sampleRate)
		segments++
	}
	return total / float64(segments), nil
}

func segmentSimilarity(a, b []float64, sampleRate int) float64 {
	mfccScore := cosineSimilarity(mfccProfile(a, sampleRate), mfccProfile(b, sampleRate))
	spectralScore := cosineSimilarity(spectralProfile(a), spectralProfile(b))
	return mfccWeight*mfccScore + spectralWeight*spectralScore
}

// recoverOffsetSafely keeps a degenerate signal from turning sync recovery
// into a job failure; alignment falls back to zero offset.
func recoverOffsetSafely(a, b []float64, sampleRate int) (offset float64) {
	defer func() {
		if recover() != nil {
			offset = 0
		}
	}()
	return RecoverOffset(a, b, sampleRate)
}
