package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"aircheck/internal/report"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Verdict", statusOK, "MATCH", false)
	if !strings.Contains(line, "Verdict:") || !strings.Contains(line, "[OK] MATCH") {
		t.Fatalf("unexpected line: %q", line)
	}
	colored := renderStatusLine("Verdict", statusError, "DIFFERS", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("color codes missing: %q", colored)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Status"},
		[][]string{{"1"}},
		[]columnAlignment{alignRight, alignLeft})
	if !strings.Contains(out, "ID") || !strings.Contains(out, "1") {
		t.Fatalf("unexpected table: %q", out)
	}
}

func TestRenderTableShortensPathColumns(t *testing.T) {
	long := "/srv/archive/2026/station-a/evening-block/program-recording-final-mixdown.mxf"
	out := renderTable(
		[]string{"ID", "Acceptance"},
		[][]string{{"1", long}},
		[]columnAlignment{alignRight, alignPath})
	if strings.Contains(out, long) {
		t.Fatalf("long path not shortened: %q", out)
	}
	if !strings.Contains(out, "program-recording-final-mixdown.mxf") {
		t.Fatalf("basename lost in shortening: %q", out)
	}
}

func TestShortenPath(t *testing.T) {
	short := "/media/a.mkv"
	if got := shortenPath(short); got != short {
		t.Fatalf("short path altered: %q", got)
	}
	long := "/srv/archive/2026/station-a/evening-block/program-recording-final-mixdown.mxf"
	got := shortenPath(long)
	if len(got) > maxPathCell {
		t.Fatalf("shortened path length = %d, want <= %d", len(got), maxPathCell)
	}
	if !strings.HasPrefix(got, "/srv/") || !strings.HasSuffix(got, "program-recording-final-mixdown.mxf") {
		t.Fatalf("shortened path lost ends: %q", got)
	}
}

func TestShouldColorizeHonorsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if shouldColorize(os.Stdout) {
		t.Fatal("NO_COLOR set but colorize enabled")
	}
}

func TestRenderReportShowsDifferingUnits(t *testing.T) {
	rep := &report.Report{
		OverallSimilarity: 0.5,
		Video: &report.VideoResult{
			TotalUnits:        2,
			DifferingUnits:    1,
			OverallSimilarity: 0.5,
			Units: []report.UnitResult{
				{Index: 0, TimestampSec: 0, Similarity: 0.99},
				{Index: 1, TimestampSec: 1.5, Similarity: 0.42, IsDifference: true, ArtifactPath: "/tmp/diff.png"},
			},
		},
	}

	var buf bytes.Buffer
	renderReport(&buf, rep)
	out := buf.String()

	if !strings.Contains(out, "DIFFERS") {
		t.Fatalf("verdict missing: %s", out)
	}
	if !strings.Contains(out, "/tmp/diff.png") {
		t.Fatalf("diff artifact path missing: %s", out)
	}
	if !strings.Contains(out, "1/2 units differ") {
		t.Fatalf("video summary missing: %s", out)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	want := map[string]bool{"daemon": false, "worker": false, "compare": false, "queue": false, "config": false}
	for _, cmd := range root.Commands() {
		name := strings.Fields(cmd.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("subcommand %q not registered", name)
		}
	}

	for _, cmd := range root.Commands() {
		if strings.Fields(cmd.Use)[0] == "worker" && !cmd.Hidden {
			t.Fatal("worker command must be hidden")
		}
	}
}
