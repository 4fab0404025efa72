package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"aircheck/internal/artifacts"
	"aircheck/internal/audiocompare"
	"aircheck/internal/compare"
	"aircheck/internal/extaudio"
	"aircheck/internal/media/sampler"
	"aircheck/internal/queue"
	"aircheck/internal/report"
	"aircheck/internal/sensitivity"
)

func newCompareCommand(cmdCtx *commandContext) *cobra.Command {
	var sensitivityFlag string
	var typeFlag string
	var jsonFlag bool
	var diffDirFlag string

	cmd := &cobra.Command{
		Use:   "compare <acceptance> <emission>",
		Short: "Compare two media files synchronously, without the daemon",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.newLogger("stderr")
			if err != nil {
				return err
			}

			comparisonType, ok := sensitivity.ParseType(typeFlag)
			if !ok {
				return fmt.Errorf("unknown comparison type %q", typeFlag)
			}
			level := sensitivity.ParseLevel(sensitivityFlag)

			job := &queue.Job{
				AcceptancePath:   args[0],
				EmissionPath:     args[1],
				Status:           queue.StatusProcessing,
				SensitivityLevel: level,
				ComparisonType:   comparisonType,
				Policy:           sensitivity.Resolve(level, comparisonType),
			}

			var diffs compare.DiffSaver
			if diffDirFlag != "" {
				diffCfg := *cfg
				diffCfg.Paths.ArtifactDir = diffDirFlag
				diffs = artifacts.NewStore(&diffCfg, logger)
			}

			controller := compare.NewController(cfg,
				sampler.New(cfg, logger),
				audiocompare.NewCombiner(cfg, logger),
				extaudio.NewRunner(cfg, logger),
				diffs,
				logger)

			progress := func(stage, message string, percent float64) {
				if !jsonFlag {
					fmt.Fprintf(cmd.ErrOrStderr(), "  [%3.0f%%] %-9s %s\n", percent, stage, message)
				}
			}

			rep, err := controller.Run(cmd.Context(), job, progress)
			if err != nil {
				return err
			}

			if jsonFlag {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(rep)
			}
			renderReport(cmd.OutOrStdout(), rep)
			if !rep.IsMatch {
				os.Exit(2)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sensitivityFlag, "sensitivity", "medium", "Sensitivity tier: low, medium, or high")
	cmd.Flags().StringVar(&typeFlag, "type", "full", "Comparison type: full, video_only, audio_only, audio_focused, or automation")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit the report as JSON")
	cmd.Flags().StringVar(&diffDirFlag, "diff-dir", "", "Directory to store visual diff images in")
	return cmd
}

func renderReport(out io.Writer, rep *report.Report) {
	colorize := shouldColorize(out)

	verdict := statusError
	label := "DIFFERS"
	if rep.IsMatch {
		verdict = statusOK
		label = "MATCH"
	}
	fmt.Fprintln(out, renderStatusLine("Verdict", verdict, label, colorize))
	fmt.Fprintln(out, renderStatusLine("Overall similarity", statusInfo,
		fmt.Sprintf("%.4f", rep.OverallSimilarity), colorize))

	if rep.Video != nil {
		fmt.Fprintln(out, renderStatusLine("Video", videoKind(rep.Video),
			fmt.Sprintf("%d/%d units differ, similarity %.4f",
				rep.Video.DifferingUnits, rep.Video.TotalUnits, rep.Video.OverallSimilarity), colorize))
	}
	if rep.Audio != nil {
		fmt.Fprintln(out, renderStatusLine("Audio", audioKind(rep.Audio),
			fmt.Sprintf("similarity %.4f, offset %.3fs", rep.Audio.Similarity, rep.Audio.OffsetSeconds), colorize))
		fmt.Fprintln(out, renderStatusLine("Loudness", loudnessKind(rep.Audio.Loudness),
			fmt.Sprintf("LUFS delta %.2f, peak delta %.2f dB", rep.Audio.Loudness.LUFSDelta, rep.Audio.Loudness.PeakDelta), colorize))
		if rep.Audio.Extended != nil {
			fmt.Fprintln(out, renderStatusLine("Transcripts", statusInfo,
				fmt.Sprintf("text similarity %.4f", rep.Audio.Extended.TextSimilarity), colorize))
		}
	}

	if rep.Video != nil && rep.Video.DifferingUnits > 0 {
		rows := make([][]string, 0, rep.Video.DifferingUnits)
		for _, unit := range rep.Video.Units {
			if !unit.IsDifference {
				continue
			}
			rows = append(rows, []string{
				strconv.Itoa(unit.Index),
				fmt.Sprintf("%.3f", unit.TimestampSec),
				fmt.Sprintf("%.4f", unit.Similarity),
				unit.ArtifactPath,
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"Unit", "Timestamp", "Similarity", "Diff Image"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignPath}))
	}
}

func videoKind(video *report.VideoResult) statusKind {
	if video.DifferingUnits > 0 {
		return statusError
	}
	return statusOK
}

func audioKind(audio *report.AudioResult) statusKind {
	if audio.HasDifferences {
		return statusError
	}
	return statusOK
}

func loudnessKind(loudness report.LoudnessResult) statusKind {
	if loudness.Error != "" {
		return statusWarn
	}
	if !loudness.IsLUFSMatch || !loudness.IsPeakMatch {
		return statusError
	}
	return statusOK
}
