package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"aircheck/internal/artifacts"
	"aircheck/internal/daemon"
	"aircheck/internal/progress"
	"aircheck/internal/queue"
	"aircheck/internal/workflow"
	"aircheck/internal/workpool"
)

func newDaemonCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the comparison daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.newLogger("stderr", filepath.Join(cfg.Paths.LogDir, "aircheck.log"))
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			hub := progress.NewHub(logger)
			artifactStore := artifacts.NewStore(cfg, logger)
			pool := workpool.NewPool(cfg, store, hub, logger)
			manager := workflow.NewManager(cfg, store, pool, hub, logger)

			d, err := daemon.New(cfg, store, manager, hub, artifactStore, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := d.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			d.Stop()
			return nil
		},
	}
}
