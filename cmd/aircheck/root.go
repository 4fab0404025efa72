package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"aircheck/internal/config"
	"aircheck/internal/logging"
)

// commandContext carries lazily loaded configuration shared by subcommands.
type commandContext struct {
	configFlag *string
	cfg        *config.Config
	cfgPath    string
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads configuration once per invocation.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, path, _, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.cfgPath = path
	return cfg, nil
}

// newLogger builds the configured logger writing to the given sinks.
func (c *commandContext) newLogger(outputs ...string) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return logger, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "aircheck",
		Short:         "Broadcast media comparison engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newDaemonCommand(ctx))
	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newCompareCommand(ctx))
	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
