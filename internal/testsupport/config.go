package testsupport

import (
	"path/filepath"
	"testing"

	"aircheck/internal/config"
)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config should validate: %v", err)
	}
	return &cfg
}
