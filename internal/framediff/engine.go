package framediff

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"aircheck/internal/logging"
	"aircheck/internal/media/sampler"
	"aircheck/internal/report"
)

// ArtifactFunc persists a rendered diff image for one unit and returns the
// stored path. A nil ArtifactFunc disables artifact output.
type ArtifactFunc func(index int, timestampSec float64, img image.Image) (string, error)

// Engine classifies sampled frame pairs against a similarity threshold.
type Engine struct {
	threshold float64
	logger    *slog.Logger
}

func New(threshold float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{threshold: threshold, logger: logger}
}

// Compare scores every pair and aggregates the outcome. A unit whose scoring
// fails is recorded as a zero-similarity difference rather than aborting the
// job; artifact persistence failures degrade the same way, leaving the unit
// without a stored image.
func (e *Engine) Compare(ctx context.Context, pairs []sampler.FramePair, saveArtifact ArtifactFunc) (*report.VideoResult, error) {
	result := &report.VideoResult{
		Units:      make([]report.UnitResult, 0, len(pairs)),
		TotalUnits: len(pairs),
	}

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		unit := report.UnitResult{Index: pair.Index, TimestampSec: pair.TimestampSec}
		similarity, err := e.scorePair(pair)
		if err != nil {
			e.logger.Warn("frame comparison failed, counting unit as difference",
				logging.Int("unit", pair.Index),
				logging.Error(err))
			unit.IsDifference = true
		} else {
			unit.Similarity = similarity
			unit.IsDifference = similarity < e.threshold
		}

		if unit.IsDifference {
			result.DifferingUnits++
			if saveArtifact != nil && err == nil {
				path, saveErr := saveArtifact(pair.Index, pair.TimestampSec, RenderDiff(pair.Acceptance, pair.Emission))
				if saveErr != nil {
					e.logger.Warn("diff artifact not stored",
						logging.Int("unit", pair.Index),
						logging.Error(saveErr))
				} else {
					unit.ArtifactPath = path
				}
			}
		}

		result.Units = append(result.Units, unit)
	}

	result.OverallSimilarity = report.VideoSimilarity(result.TotalUnits, result.DifferingUnits)
	return result, nil
}

// scorePair isolates one unit so a malformed frame cannot take down the run.
func (e *Engine) scorePair(pair sampler.FramePair) (similarity float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			similarity = 0
			err = fmt.Errorf("frame scoring panicked: %v", r)
		}
	}()
	if pair.Acceptance == nil || pair.Emission == nil {
		return 0, fmt.Errorf("frame pair %d is incomplete", pair.Index)
	}
	return Similarity(pair.Acceptance, pair.Emission), nil
}
