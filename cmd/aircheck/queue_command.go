package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"aircheck/internal/queue"
)

func newQueueCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the comparison queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newQueueListCommand(cmdCtx))
	cmd.AddCommand(newQueueStatusCommand(cmdCtx))
	cmd.AddCommand(newQueueRemoveCommand(cmdCtx))
	cmd.AddCommand(newQueueClearCommand(cmdCtx))
	return cmd
}

func withStore(cmdCtx *commandContext, run func(cmd *cobra.Command, store *queue.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := cmdCtx.ensureConfig()
		if err != nil {
			return err
		}
		store, err := queue.Open(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		return run(cmd, store, args)
	}
}

func newQueueListCommand(cmdCtx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List comparison jobs",
		RunE: withStore(cmdCtx, func(cmd *cobra.Command, store *queue.Store, args []string) error {
			var statuses []queue.Status
			if statusFlag != "" {
				status, ok := queue.ParseStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFlag)
				}
				statuses = append(statuses, status)
			}

			jobs, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					string(job.Status),
					string(job.ComparisonType),
					string(job.SensitivityLevel),
					fmt.Sprintf("%.0f%%", job.ProgressPercent),
					job.ProgressStage,
					job.AcceptancePath,
					job.EmissionPath,
					job.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Status", "Type", "Sensitivity", "Progress", "Stage", "Acceptance", "Emission", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignPath, alignPath, alignLeft}))
			return nil
		}),
	}
	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status: pending, processing, completed, or failed")
	return cmd
}

func newQueueStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts by status",
		RunE: withStore(cmdCtx, func(cmd *cobra.Command, store *queue.Store, args []string) error {
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			colorize := shouldColorize(cmd.OutOrStdout())
			for _, status := range queue.AllStatuses() {
				kind := statusInfo
				switch status {
				case queue.StatusCompleted:
					kind = statusOK
				case queue.StatusFailed:
					kind = statusError
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStatusLine(string(status), kind,
					strconv.Itoa(stats[status]), colorize))
			}
			return nil
		}),
	}
}

func newQueueRemoveCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a job and its stored results",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(cmdCtx, func(cmd *cobra.Command, store *queue.Store, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			removed, err := store.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("job %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed job %d\n", id)
			return nil
		}),
	}
}

func newQueueClearCommand(cmdCtx *commandContext) *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear finished jobs from the queue",
		RunE: withStore(cmdCtx, func(cmd *cobra.Command, store *queue.Store, args []string) error {
			var removed int64
			var err error
			if allFlag {
				removed, err = store.Clear(cmd.Context())
			} else {
				removed, err = store.ClearTerminal(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d jobs\n", removed)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&allFlag, "all", false, "Remove every job, including pending and processing")
	return cmd
}
