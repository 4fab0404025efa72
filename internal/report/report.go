// Package report defines the comparison verdict model produced by a finished
// job: per-unit results, audio measurements, and the merged overall outcome.
package report

import (
	"fmt"
	"math"
)

// UnitResult is the outcome of comparing one aligned frame or segment pair.
type UnitResult struct {
	Index        int     `json:"index"`
	TimestampSec float64 `json:"timestamp_sec"`
	Similarity   float64 `json:"similarity"`
	IsDifference bool    `json:"is_difference"`
	ArtifactPath string  `json:"artifact_path,omitempty"`
}

// VideoResult aggregates the frame comparison stage.
type VideoResult struct {
	Units             []UnitResult `json:"units"`
	TotalUnits        int          `json:"total_units"`
	DifferingUnits    int          `json:"differing_units"`
	OverallSimilarity float64      `json:"overall_similarity"`
}

// LoudnessSide holds the broadcast loudness measurements for one input.
type LoudnessSide struct {
	IntegratedLUFS float64 `json:"integrated_lufs"`
	TruePeakDB     float64 `json:"true_peak_db"`
}

// LoudnessResult pairs both sides with derived deltas and match flags.
type LoudnessResult struct {
	Acceptance  LoudnessSide `json:"acceptance"`
	Emission    LoudnessSide `json:"emission"`
	LUFSDelta   float64      `json:"lufs_delta"`
	PeakDelta   float64      `json:"peak_delta"`
	IsLUFSMatch bool         `json:"is_lufs_match"`
	IsPeakMatch bool         `json:"is_peak_match"`
	Error       string       `json:"error,omitempty"`
}

// ExtendedResult carries the opaque source separation + transcript sub-report.
type ExtendedResult struct {
	TextSimilarity  float64        `json:"text_similarity"`
	TranscriptA     string         `json:"transcript_a"`
	TranscriptB     string         `json:"transcript_b"`
	SeparationStats map[string]any `json:"separation_stats,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// AudioResult aggregates the audio comparison stage.
type AudioResult struct {
	Loudness        LoudnessResult  `json:"loudness"`
	Similarity      float64         `json:"similarity"`
	SimilarityError string          `json:"similarity_error,omitempty"`
	OffsetSeconds   float64         `json:"offset_seconds"`
	HasDifferences  bool            `json:"has_differences"`
	Extended        *ExtendedResult `json:"extended,omitempty"`
}

// Report is the persisted verdict for a completed comparison job.
type Report struct {
	OverallSimilarity float64           `json:"overall_similarity"`
	IsMatch           bool              `json:"is_match"`
	Video             *VideoResult      `json:"video,omitempty"`
	Audio             *AudioResult      `json:"audio,omitempty"`
	ArtifactIndex     map[string]string `json:"artifact_index,omitempty"`
}

// VideoSimilarity computes the match-ratio aggregate: every differing unit
// counts equally toward the verdict regardless of how close its own score was
// to the threshold. Averaging per-unit scores would let a handful of badly
// differing units hide inside a majority of near-perfect ones.
func VideoSimilarity(total, differing int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(total-differing) / float64(total)
}

// Merge combines stage results into the final verdict. The overall similarity
// is the minimum of the stage similarities when both stages ran; a job matches
// only when neither stage observed differences.
func Merge(video *VideoResult, audio *AudioResult) Report {
	rep := Report{Video: video, Audio: audio}

	switch {
	case video != nil && audio != nil:
		rep.OverallSimilarity = math.Min(video.OverallSimilarity, audio.Similarity)
	case video != nil:
		rep.OverallSimilarity = video.OverallSimilarity
	case audio != nil:
		rep.OverallSimilarity = audio.Similarity
	}

	videoDiffers := video != nil && video.DifferingUnits > 0
	audioDiffers := audio != nil && audio.HasDifferences
	rep.IsMatch = !videoDiffers && !audioDiffers

	if video != nil {
		for _, unit := range video.Units {
			if unit.ArtifactPath == "" {
				continue
			}
			if rep.ArtifactIndex == nil {
				rep.ArtifactIndex = make(map[string]string)
			}
			rep.ArtifactIndex[formatTimestamp(unit.TimestampSec)] = unit.ArtifactPath
		}
	}
	return rep
}

func formatTimestamp(seconds float64) string {
	millis := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%d.%03d", millis/1000, millis%1000)
}
