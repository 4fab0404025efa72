package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateComparison(); err != nil {
		return err
	}
	if err := c.validateArtifacts(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ArtifactDir) == "" {
		return errors.New("paths.artifact_dir must be set")
	}
	return nil
}

func (c *Config) validateComparison() error {
	if c.Comparison.MaxConcurrentJobs < 1 {
		return errors.New("comparison.max_concurrent_jobs must be at least 1")
	}
	if c.Comparison.JobTimeoutSeconds < 1 {
		return errors.New("comparison.job_timeout_seconds must be at least 1")
	}
	if c.Comparison.AudioMatchThreshold < 0 || c.Comparison.AudioMatchThreshold > 1 {
		return errors.New("comparison.audio_match_threshold must be between 0 and 1")
	}
	if c.Comparison.AudioSampleRate < 8000 {
		return fmt.Errorf("comparison.audio_sample_rate %d is too low (minimum 8000)", c.Comparison.AudioSampleRate)
	}
	if c.Comparison.SegmentSeconds <= 0 {
		return errors.New("comparison.segment_seconds must be positive")
	}
	return nil
}

func (c *Config) validateArtifacts() error {
	if c.Artifacts.RetentionDays < 1 {
		return errors.New("artifacts.retention_days must be at least 1")
	}
	if c.Artifacts.MaxTotalMiB < 1 {
		return errors.New("artifacts.max_total_mib must be at least 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval < 1 {
		return errors.New("workflow.queue_poll_interval must be at least 1 second")
	}
	if c.Workflow.ErrorRetryInterval < 1 {
		return errors.New("workflow.error_retry_interval must be at least 1 second")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}
