// Package compare drives one comparison job end to end: probing both inputs,
// sampling, running the in-scope comparison stages, and merging the stage
// outcomes into the final report.
package compare

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"aircheck/internal/config"
	"aircheck/internal/framediff"
	"aircheck/internal/logging"
	"aircheck/internal/media/ffprobe"
	"aircheck/internal/media/sampler"
	"aircheck/internal/queue"
	"aircheck/internal/report"
	"aircheck/internal/sensitivity"
	"aircheck/internal/services"
)

// Stage names reported through progress updates.
const (
	StageProbe    = "probe"
	StageSample   = "sample"
	StageVideo    = "video"
	StageAudio    = "audio"
	StageExtended = "extended"
	StageFinalize = "finalize"
)

// Progress milestones emitted as the pipeline advances.
const (
	percentProbed         = 5.0
	percentPrepared       = 10.0
	percentFramesSampled  = 25.0
	percentVideoCompared  = 50.0
	percentAudioExtracted = 65.0
	percentAudioAnalyzed  = 85.0
	percentMerged         = 95.0
	percentDone           = 100.0
)

// ProgressFunc receives stage transitions and milestone percentages.
type ProgressFunc func(stage, message string, percent float64)

// MediaSampler extracts aligned frame pairs and decoded audio from the inputs.
type MediaSampler interface {
	ExtractFramePairs(ctx context.Context, acceptancePath, emissionPath string, policy sensitivity.Policy, workDir string) ([]sampler.FramePair, error)
	ExtractAudio(ctx context.Context, sourcePath, workDir, label string) ([]float64, error)
}

// AudioAnalyzer produces the audio stage result from two decoded signals.
type AudioAnalyzer interface {
	Analyze(ctx context.Context, acceptance, emission []float64) (*report.AudioResult, error)
}

// ExtendedAnalyzer runs the optional source separation + transcript pass.
type ExtendedAnalyzer interface {
	Enabled() bool
	Analyze(ctx context.Context, acceptanceAudio, emissionAudio string) *report.ExtendedResult
}

// DiffSaver persists one rendered diff artifact.
type DiffSaver interface {
	SaveDiff(jobID int64, unitIndex int, timestampSec float64, img image.Image) (string, error)
}

// Prober inspects one media file.
type Prober func(ctx context.Context, path string) (ffprobe.Result, error)

// Controller runs the comparison pipeline for claimed jobs.
type Controller struct {
	cfg      *config.Config
	sampler  MediaSampler
	audio    AudioAnalyzer
	extended ExtendedAnalyzer
	diffs    DiffSaver
	probe    Prober
	logger   *slog.Logger
}

func NewController(cfg *config.Config, mediaSampler MediaSampler, audio AudioAnalyzer, extended ExtendedAnalyzer, diffs DiffSaver, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		cfg:      cfg,
		sampler:  mediaSampler,
		audio:    audio,
		extended: extended,
		diffs:    diffs,
		probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, cfg.Comparison.FFprobeBinary, path)
		},
		logger: logger,
	}
}

// Run executes the pipeline for one job and returns the merged report. Any
// returned error means the job must transition to failed; stage degradations
// that the pipeline can absorb are folded into the report instead.
func (c *Controller) Run(ctx context.Context, job *queue.Job, progress ProgressFunc) (*report.Report, error) {
	if progress == nil {
		progress = func(string, string, float64) {}
	}
	logger := c.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldCorrelationID, job.CorrelationID),
	)

	workDir := filepath.Join(c.cfg.Paths.StagingDir, fmt.Sprintf("job-%d", job.ID))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "compare", "prepare", "failed to create staging directory", err)
	}
	defer os.RemoveAll(workDir)

	if err := c.probeInputs(ctx, job); err != nil {
		return nil, err
	}
	progress(StageProbe, "inputs probed", percentProbed)
	progress(StageSample, "comparison prepared", percentPrepared)

	var videoResult *report.VideoResult
	if job.ComparisonType.VideoInScope() {
		var err error
		videoResult, err = c.runVideoStage(ctx, job, workDir, progress)
		if err != nil {
			return nil, err
		}
		logger.Info("video stage finished",
			logging.Int("units", videoResult.TotalUnits),
			logging.Int("differing", videoResult.DifferingUnits))
	}

	var audioResult *report.AudioResult
	if job.ComparisonType.AudioInScope() {
		var err error
		audioResult, err = c.runAudioStage(ctx, job, workDir, progress)
		if err != nil {
			return nil, err
		}
		logger.Info("audio stage finished",
			logging.Float64("similarity", audioResult.Similarity),
			logging.Bool("differs", audioResult.HasDifferences))
	}

	progress(StageFinalize, "merging stage results", percentMerged)
	merged := report.Merge(videoResult, audioResult)
	progress(StageFinalize, "comparison complete", percentDone)
	return &merged, nil
}

// probeInputs verifies both files exist and carry the streams the comparison
// type requires.
func (c *Controller) probeInputs(ctx context.Context, job *queue.Job) error {
	for _, input := range []struct {
		label string
		path  string
	}{
		{"acceptance", job.AcceptancePath},
		{"emission", job.EmissionPath},
	} {
		if _, err := os.Stat(input.path); err != nil {
			return services.Wrap(services.ErrValidation, "compare", "probe",
				fmt.Sprintf("%s input not readable: %s", input.label, input.path), err)
		}

		probed, err := c.probe(ctx, input.path)
		if err != nil {
			return services.Wrap(services.ErrMediaTool, "compare", "probe",
				fmt.Sprintf("failed to probe %s input", input.label), err)
		}
		if job.ComparisonType.VideoInScope() && probed.VideoStreamCount() == 0 {
			return services.Wrap(services.ErrValidation, "compare", "probe",
				fmt.Sprintf("%s input has no video stream", input.label), nil)
		}
		if job.ComparisonType.AudioInScope() && probed.AudioStreamCount() == 0 {
			return services.Wrap(services.ErrValidation, "compare", "probe",
				fmt.Sprintf("%s input has no audio stream", input.label), nil)
		}
	}
	return nil
}

func (c *Controller) runVideoStage(ctx context.Context, job *queue.Job, workDir string, progress ProgressFunc) (*report.VideoResult, error) {
	pairs, err := c.sampler.ExtractFramePairs(ctx, job.AcceptancePath, job.EmissionPath, job.Policy, workDir)
	if err != nil {
		return nil, err
	}
	progress(StageVideo, fmt.Sprintf("extracted %d frame pairs", len(pairs)), percentFramesSampled)

	engine := framediff.New(job.Policy.SimilarityThreshold, c.logger)
	var saveArtifact framediff.ArtifactFunc
	if c.diffs != nil {
		saveArtifact = func(index int, ts float64, img image.Image) (string, error) {
			return c.diffs.SaveDiff(job.ID, index, ts, img)
		}
	}
	result, err := engine.Compare(ctx, pairs, saveArtifact)
	if err != nil {
		return nil, err
	}
	progress(StageVideo, fmt.Sprintf("compared %d units, %d differ", result.TotalUnits, result.DifferingUnits), percentVideoCompared)
	return result, nil
}

func (c *Controller) runAudioStage(ctx context.Context, job *queue.Job, workDir string, progress ProgressFunc) (*report.AudioResult, error) {
	acceptance, err := c.sampler.ExtractAudio(ctx, job.AcceptancePath, workDir, "acceptance")
	if err != nil {
		return nil, err
	}
	emission, err := c.sampler.ExtractAudio(ctx, job.EmissionPath, workDir, "emission")
	if err != nil {
		return nil, err
	}
	progress(StageAudio, "audio decoded", percentAudioExtracted)

	result, err := c.audio.Analyze(ctx, acceptance, emission)
	if err != nil {
		return nil, err
	}
	progress(StageAudio, "audio analyzed", percentAudioAnalyzed)

	if job.ComparisonType.ExtendedAudio() && c.extended != nil && c.extended.Enabled() {
		progress(StageExtended, "running extended audio analysis", percentAudioAnalyzed)
		result.Extended = c.extended.Analyze(ctx,
			filepath.Join(workDir, "acceptance.pcm"),
			filepath.Join(workDir, "emission.pcm"))
	}
	return result, nil
}
