package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"aircheck/internal/artifacts"
	"aircheck/internal/audiocompare"
	"aircheck/internal/compare"
	"aircheck/internal/extaudio"
	"aircheck/internal/media/sampler"
	"aircheck/internal/queue"
	"aircheck/internal/services"
	"aircheck/internal/workpool"
)

// newWorkerCommand is the hidden entry point the daemon spawns per job. The
// worker streams protocol messages on stdout and persists the report itself;
// stdout stays reserved for the protocol, so logs go to the worker log file.
func newWorkerCommand(cmdCtx *commandContext) *cobra.Command {
	var jobID int64

	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Execute one claimed comparison job",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobID <= 0 {
				return fmt.Errorf("--job-id is required")
			}
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.newLogger(filepath.Join(cfg.Paths.LogDir, "worker.log"))
			if err != nil {
				return err
			}

			emitter := workpool.NewEmitter(os.Stdout)

			store, err := queue.Open(cfg)
			if err != nil {
				emitter.Fail(fmt.Sprintf("open queue store: %v", err))
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			job, err := store.GetByID(ctx, jobID)
			if err != nil {
				emitter.Fail(fmt.Sprintf("load job: %v", err))
				return err
			}
			if job == nil {
				err := fmt.Errorf("job %d not found", jobID)
				emitter.Fail(err.Error())
				return err
			}
			if job.Status != queue.StatusProcessing {
				err := fmt.Errorf("job %d is %s, expected processing", jobID, job.Status)
				emitter.Fail(err.Error())
				return err
			}

			controller := compare.NewController(cfg,
				sampler.New(cfg, logger),
				audiocompare.NewCombiner(cfg, logger),
				extaudio.NewRunner(cfg, logger),
				artifacts.NewStore(cfg, logger),
				logger)

			if err := runComparison(ctx, controller, store, job, emitter); err != nil {
				emitter.Fail(services.UserMessage(err))
				return err
			}
			emitter.Done()
			return nil
		},
	}
	cmd.Flags().Int64Var(&jobID, "job-id", 0, "Identifier of the claimed job to execute")
	return cmd
}

func runComparison(ctx context.Context, controller *compare.Controller, store *queue.Store, job *queue.Job, emitter *workpool.Emitter) error {
	rep, err := controller.Run(ctx, job, emitter.Progress)
	if err != nil {
		return err
	}
	if rep.Video != nil && len(rep.Video.Units) > 0 {
		if err := store.AppendUnits(ctx, job.ID, rep.Video.Units); err != nil {
			return err
		}
	}
	return store.SaveReport(ctx, job.ID, rep)
}
