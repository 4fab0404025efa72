package report_test

import (
	"testing"

	"aircheck/internal/report"
)

func TestVideoSimilarityIsMatchRatio(t *testing.T) {
	cases := []struct {
		total, differing int
		want             float64
	}{
		{30, 0, 1.0},
		{30, 3, 0.9},
		{10, 10, 0.0},
		{0, 0, 0.0},
	}
	for _, tc := range cases {
		if got := report.VideoSimilarity(tc.total, tc.differing); got != tc.want {
			t.Errorf("VideoSimilarity(%d, %d) = %v, want %v", tc.total, tc.differing, got, tc.want)
		}
	}
}

func TestMergeTakesMinimum(t *testing.T) {
	video := &report.VideoResult{TotalUnits: 30, DifferingUnits: 0, OverallSimilarity: 1.0}
	audio := &report.AudioResult{Similarity: 0.97, HasDifferences: true}

	rep := report.Merge(video, audio)
	if rep.OverallSimilarity != 0.97 {
		t.Fatalf("overall similarity = %v, want 0.97", rep.OverallSimilarity)
	}
	if rep.IsMatch {
		t.Fatal("audio differences must fail the match")
	}
}

func TestMergeSingleStage(t *testing.T) {
	video := &report.VideoResult{TotalUnits: 30, DifferingUnits: 3, OverallSimilarity: 0.9}
	rep := report.Merge(video, nil)
	if rep.OverallSimilarity != 0.9 {
		t.Fatalf("overall similarity = %v, want 0.9", rep.OverallSimilarity)
	}
	if rep.IsMatch {
		t.Fatal("differing units must fail the match")
	}

	audio := &report.AudioResult{Similarity: 0.995}
	rep = report.Merge(nil, audio)
	if rep.OverallSimilarity != 0.995 {
		t.Fatalf("overall similarity = %v, want 0.995", rep.OverallSimilarity)
	}
	if !rep.IsMatch {
		t.Fatal("expected match when no stage observed differences")
	}
}

func TestMergeBuildsArtifactIndex(t *testing.T) {
	video := &report.VideoResult{
		Units: []report.UnitResult{
			{Index: 0, TimestampSec: 0, Similarity: 1.0},
			{Index: 1, TimestampSec: 1.5, Similarity: 0.2, IsDifference: true, ArtifactPath: "/tmp/diff_1.png"},
			{Index: 2, TimestampSec: 3.0, Similarity: 0.1, IsDifference: true, ArtifactPath: "/tmp/diff_2.png"},
		},
		TotalUnits:        3,
		DifferingUnits:    2,
		OverallSimilarity: report.VideoSimilarity(3, 2),
	}
	rep := report.Merge(video, nil)
	if len(rep.ArtifactIndex) != 2 {
		t.Fatalf("artifact index size = %d, want 2", len(rep.ArtifactIndex))
	}
	if rep.ArtifactIndex["1.500"] != "/tmp/diff_1.png" {
		t.Fatalf("missing artifact at 1.500: %#v", rep.ArtifactIndex)
	}
	if rep.ArtifactIndex["3.000"] != "/tmp/diff_2.png" {
		t.Fatalf("missing artifact at 3.000: %#v", rep.ArtifactIndex)
	}
}
