// Package artifacts persists visual diff images under a per-job directory and
// keeps the total artifact footprint bounded by age and size.
package artifacts

import (
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"aircheck/internal/config"
	"aircheck/internal/logging"
	"aircheck/internal/services"
)

// Store writes and sweeps diff artifacts below the configured artifact root.
type Store struct {
	root          string
	retentionDays int
	maxTotalBytes int64
	logger        *slog.Logger
}

func NewStore(cfg *config.Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		root:          cfg.Paths.ArtifactDir,
		retentionDays: cfg.Artifacts.RetentionDays,
		maxTotalBytes: int64(cfg.Artifacts.MaxTotalMiB) * 1024 * 1024,
		logger:        logger,
	}
}

// JobDir returns the directory holding one job's artifacts.
func (s *Store) JobDir(jobID int64) string {
	return filepath.Join(s.root, fmt.Sprintf("job-%d", jobID))
}

// SaveDiff encodes the diff image as PNG and returns its stored path.
func (s *Store) SaveDiff(jobID int64, unitIndex int, timestampSec float64, img image.Image) (string, error) {
	dir := s.JobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "artifacts", "save", "failed to create artifact directory", err)
	}

	millis := int64(timestampSec * 1000)
	path := filepath.Join(dir, fmt.Sprintf("unit_%04d_%dms.png", unitIndex, millis))
	file, err := os.Create(path)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "artifacts", "save", "failed to create artifact file", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		os.Remove(path)
		return "", services.Wrap(services.ErrAlgorithm, "artifacts", "save", "failed to encode diff image", err)
	}
	return path, nil
}

// RemoveJob deletes one job's artifact directory.
func (s *Store) RemoveJob(jobID int64) error {
	return os.RemoveAll(s.JobDir(jobID))
}

type jobDirInfo struct {
	path    string
	modTime time.Time
	size    int64
}

// Sweep enforces retention: job directories older than the retention window
// are removed, then the oldest remaining directories are evicted until the
// total footprint fits the size cap. Sweep never fails the caller; problems
// are logged and skipped.
func (s *Store) Sweep() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("artifact sweep skipped", logging.Error(err))
		}
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	var dirs []jobDirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(s.root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if s.retentionDays > 0 && info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(path); err != nil {
				s.logger.Warn("expired artifact directory not removed",
					logging.String("path", path), logging.Error(err))
			}
			continue
		}
		dirs = append(dirs, jobDirInfo{path: path, modTime: info.ModTime(), size: dirSize(path)})
	}

	if s.maxTotalBytes <= 0 {
		return
	}

	var total int64
	for _, d := range dirs {
		total += d.size
	}
	if total <= s.maxTotalBytes {
		return
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].modTime.Before(dirs[j].modTime) })
	for _, d := range dirs {
		if total <= s.maxTotalBytes {
			break
		}
		if err := os.RemoveAll(d.path); err != nil {
			s.logger.Warn("artifact directory not evicted",
				logging.String("path", d.path), logging.Error(err))
			continue
		}
		s.logger.Info("evicted artifact directory over size cap",
			logging.String("path", d.path))
		total -= d.size
	}
}

func dirSize(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
