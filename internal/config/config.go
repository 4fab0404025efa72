package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	StagingDir  string `toml:"staging_dir"`
	ArtifactDir string `toml:"artifact_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
}

// Comparison contains tuning for the comparison pipeline.
type Comparison struct {
	MaxConcurrentJobs   int     `toml:"max_concurrent_jobs"`
	JobTimeoutSeconds   int     `toml:"job_timeout_seconds"`
	FFmpegBinary        string  `toml:"ffmpeg_binary"`
	FFprobeBinary       string  `toml:"ffprobe_binary"`
	AudioMatchThreshold float64 `toml:"audio_match_threshold"`
	AudioSampleRate     int     `toml:"audio_sample_rate"`
	SegmentSeconds      float64 `toml:"segment_seconds"`
}

// ExtendedAudio configures the optional source separation + transcript collaborator.
type ExtendedAudio struct {
	Command        string `toml:"command"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Artifacts configures diff artifact retention.
type Artifacts struct {
	RetentionDays int `toml:"retention_days"`
	MaxTotalMiB   int `toml:"max_total_mib"`
}

// Workflow contains daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for aircheck.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Comparison: worker pool sizing, timeouts, media tool binaries, audio tuning
//   - ExtendedAudio: source separation + transcript collaborator command
//   - Artifacts: diff image retention policy
//   - Workflow: daemon polling intervals
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Comparison    Comparison    `toml:"comparison"`
	ExtendedAudio ExtendedAudio `toml:"extended_audio"`
	Artifacts     Artifacts     `toml:"artifacts"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/aircheck/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The boolean reports whether a
// file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("aircheck.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	for _, field := range []*string{&c.Paths.DataDir, &c.Paths.StagingDir, &c.Paths.ArtifactDir, &c.Paths.LogDir} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	if strings.TrimSpace(c.Comparison.FFmpegBinary) == "" {
		c.Comparison.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(c.Comparison.FFprobeBinary) == "" {
		c.Comparison.FFprobeBinary = "ffprobe"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StagingDir, c.Paths.ArtifactDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "aircheck.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
