package compare

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"aircheck/internal/media/ffprobe"
	"aircheck/internal/media/sampler"
	"aircheck/internal/queue"
	"aircheck/internal/report"
	"aircheck/internal/sensitivity"
	"aircheck/internal/services"
	"aircheck/internal/testsupport"
)

type fakeSampler struct {
	pairs      []sampler.FramePair
	audio      []float64
	frameErr   error
	audioErr   error
	audioCalls int
}

func (f *fakeSampler) ExtractFramePairs(ctx context.Context, acceptancePath, emissionPath string, policy sensitivity.Policy, workDir string) ([]sampler.FramePair, error) {
	return f.pairs, f.frameErr
}

func (f *fakeSampler) ExtractAudio(ctx context.Context, sourcePath, workDir, label string) ([]float64, error) {
	f.audioCalls++
	return f.audio, f.audioErr
}

type fakeAudio struct {
	result *report.AudioResult
	err    error
}

func (f *fakeAudio) Analyze(ctx context.Context, acceptance, emission []float64) (*report.AudioResult, error) {
	return f.result, f.err
}

type fakeExtended struct {
	enabled bool
	result  *report.ExtendedResult
	calls   int
}

func (f *fakeExtended) Enabled() bool { return f.enabled }

func (f *fakeExtended) Analyze(ctx context.Context, acceptanceAudio, emissionAudio string) *report.ExtendedResult {
	f.calls++
	return f.result
}

type fakeDiffs struct{ saves int }

func (f *fakeDiffs) SaveDiff(jobID int64, unitIndex int, timestampSec float64, img image.Image) (string, error) {
	f.saves++
	return "diff.png", nil
}

func frame(c uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, color.RGBA{R: c, G: c, B: c, A: 255})
		}
	}
	return img
}

type progressRecord struct {
	stage   string
	percent float64
}

func touchInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	acceptance := filepath.Join(dir, "acceptance.mxf")
	emission := filepath.Join(dir, "emission.mxf")
	for _, path := range []string{acceptance, emission} {
		if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
	}
	return acceptance, emission
}

func testJob(t *testing.T, comparisonType sensitivity.ComparisonType) *queue.Job {
	t.Helper()
	acceptance, emission := touchInputs(t)
	return &queue.Job{
		ID:             42,
		CorrelationID:  "corr",
		AcceptancePath: acceptance,
		EmissionPath:   emission,
		ComparisonType: comparisonType,
		Policy:         sensitivity.Resolve(sensitivity.LevelMedium, comparisonType),
	}
}

func newTestController(t *testing.T, mediaSampler MediaSampler, audio AudioAnalyzer, extended ExtendedAnalyzer, diffs DiffSaver, streams int) *Controller {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	controller := NewController(cfg, mediaSampler, audio, extended, diffs, nil)
	controller.probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
		result := ffprobe.Result{}
		for i := 0; i < streams; i++ {
			result.Streams = append(result.Streams,
				ffprobe.Stream{CodecType: "video"},
				ffprobe.Stream{CodecType: "audio"})
		}
		return result, nil
	}
	return controller
}

func TestRunFullComparisonMilestones(t *testing.T) {
	base := frame(100)
	samplerFake := &fakeSampler{
		pairs: []sampler.FramePair{
			{Index: 0, TimestampSec: 0, Acceptance: base, Emission: base},
			{Index: 1, TimestampSec: 1, Acceptance: base, Emission: frame(220)},
		},
		audio: make([]float64, 16000),
	}
	audioFake := &fakeAudio{result: &report.AudioResult{Similarity: 0.995}}
	diffs := &fakeDiffs{}
	controller := newTestController(t, samplerFake, audioFake, &fakeExtended{}, diffs, 1)

	var records []progressRecord
	job := testJob(t, sensitivity.TypeFull)
	rep, err := controller.Run(context.Background(), job, func(stage, message string, percent float64) {
		records = append(records, progressRecord{stage: stage, percent: percent})
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.Video == nil || rep.Audio == nil {
		t.Fatalf("full comparison missing a stage: %+v", rep)
	}
	if rep.IsMatch {
		t.Fatal("differing video unit must fail the match")
	}
	if diffs.saves != 1 {
		t.Fatalf("diff artifacts saved = %d, want 1", diffs.saves)
	}

	if len(records) == 0 || records[len(records)-1].percent != 100 {
		t.Fatalf("final milestone = %+v, want 100", records)
	}
	last := 0.0
	for _, r := range records {
		if r.percent < last {
			t.Fatalf("progress regressed: %+v", records)
		}
		last = r.percent
	}
	for i, want := range []string{StageProbe, StageSample, StageVideo} {
		if records[i].stage != want {
			t.Fatalf("stage order %d = %q, want %q", i, records[i].stage, want)
		}
	}
}

func TestRunVideoOnlySkipsAudio(t *testing.T) {
	base := frame(100)
	samplerFake := &fakeSampler{pairs: []sampler.FramePair{{Acceptance: base, Emission: base}}}
	audioFake := &fakeAudio{err: errors.New("must not run")}
	controller := newTestController(t, samplerFake, audioFake, &fakeExtended{}, nil, 1)

	rep, err := controller.Run(context.Background(), testJob(t, sensitivity.TypeVideoOnly), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Audio != nil {
		t.Fatalf("video_only produced audio result: %+v", rep.Audio)
	}
	if samplerFake.audioCalls != 0 {
		t.Fatalf("audio extracted %d times for video_only", samplerFake.audioCalls)
	}
	if !rep.IsMatch {
		t.Fatalf("identical frames must match: %+v", rep)
	}
}

func TestRunAudioOnlySkipsVideo(t *testing.T) {
	samplerFake := &fakeSampler{frameErr: errors.New("must not run"), audio: make([]float64, 16000)}
	audioFake := &fakeAudio{result: &report.AudioResult{Similarity: 1.0}}
	controller := newTestController(t, samplerFake, audioFake, &fakeExtended{}, nil, 1)

	rep, err := controller.Run(context.Background(), testJob(t, sensitivity.TypeAudioOnly), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Video != nil {
		t.Fatalf("audio_only produced video result: %+v", rep.Video)
	}
	if rep.OverallSimilarity != 1.0 {
		t.Fatalf("OverallSimilarity = %v, want 1.0", rep.OverallSimilarity)
	}
}

func TestRunExtendedAudioGating(t *testing.T) {
	samplerFake := &fakeSampler{audio: make([]float64, 16000)}
	audioFake := &fakeAudio{result: &report.AudioResult{Similarity: 1.0}}

	for _, tc := range []struct {
		comparisonType sensitivity.ComparisonType
		wantCalls      int
	}{
		{sensitivity.TypeAudioFocused, 1},
		{sensitivity.TypeAutomation, 1},
		{sensitivity.TypeAudioOnly, 0},
	} {
		extended := &fakeExtended{enabled: true, result: &report.ExtendedResult{TextSimilarity: 0.9}}
		base := frame(100)
		samplerFake.pairs = []sampler.FramePair{{Acceptance: base, Emission: base}}
		controller := newTestController(t, samplerFake, audioFake, extended, nil, 1)

		rep, err := controller.Run(context.Background(), testJob(t, tc.comparisonType), nil)
		if err != nil {
			t.Fatalf("Run(%s): %v", tc.comparisonType, err)
		}
		if extended.calls != tc.wantCalls {
			t.Fatalf("extended calls for %s = %d, want %d", tc.comparisonType, extended.calls, tc.wantCalls)
		}
		if tc.wantCalls == 1 && rep.Audio.Extended == nil {
			t.Fatalf("extended result not merged for %s", tc.comparisonType)
		}
	}
}

func TestRunFailsOnMissingInput(t *testing.T) {
	controller := newTestController(t, &fakeSampler{}, &fakeAudio{}, &fakeExtended{}, nil, 1)
	job := testJob(t, sensitivity.TypeFull)
	job.EmissionPath = filepath.Join(t.TempDir(), "absent.mxf")

	_, err := controller.Run(context.Background(), job, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestRunFailsOnMissingMandatoryStream(t *testing.T) {
	controller := newTestController(t, &fakeSampler{}, &fakeAudio{}, &fakeExtended{}, nil, 0)

	_, err := controller.Run(context.Background(), testJob(t, sensitivity.TypeFull), nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestRunPropagatesSamplerFailure(t *testing.T) {
	samplerFake := &fakeSampler{frameErr: services.Wrap(services.ErrMediaTool, "sampler", "extract", "ffmpeg exploded", nil)}
	controller := newTestController(t, samplerFake, &fakeAudio{}, &fakeExtended{}, nil, 1)

	_, err := controller.Run(context.Background(), testJob(t, sensitivity.TypeFull), nil)
	if !errors.Is(err, services.ErrMediaTool) {
		t.Fatalf("err = %v, want media tool error", err)
	}
}

func TestRunCleansStagingDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := frame(100)
	samplerFake := &fakeSampler{pairs: []sampler.FramePair{{Acceptance: base, Emission: base}}}
	controller := NewController(cfg, samplerFake, &fakeAudio{}, &fakeExtended{}, nil, nil)
	controller.probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video"}}}, nil
	}

	job := testJob(t, sensitivity.TypeVideoOnly)
	if _, err := controller.Run(context.Background(), job, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StagingDir, "job-42")); !os.IsNotExist(err) {
		t.Fatalf("staging dir not removed: %v", err)
	}
}
