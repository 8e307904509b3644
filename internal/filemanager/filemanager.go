package filemanager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

const (
	jobDirPrefix = "job_"
	dirMode      = 0o750
)

var ErrOutsideRoot = errors.New("path is outside the downloads directory")

// Manager owns the downloads root and the per-job directories under it.
type Manager struct {
	root string
}

func New(root string) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, dirMode); err != nil {
		return nil, utils.WrapError(err, "failed to create downloads directory", map[string]any{"path": abs})
	}
	return &Manager{root: abs}, nil
}

func (m *Manager) Root() string { return m.root }

// CreateJobDir makes an empty directory private to one job.
func (m *Manager) CreateJobDir(id uuid.UUID) (string, error) {
	dir := filepath.Join(m.root, jobDirPrefix+id.String())
	if err := os.Mkdir(dir, dirMode); err != nil {
		return "", fmt.Errorf("create job directory: %w", err)
	}
	return dir, nil
}

// Cleanup removes a job directory and everything in it. A missing directory is not an error.
func (m *Manager) Cleanup(dir string) error {
	if err := m.checkInside(dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		logutils.Log.WithError(err).WithField("dir", dir).Warn("Failed to remove job directory")
		return err
	}
	logutils.Log.WithField("dir", dir).Debug("Job directory removed")
	return nil
}

// PurgeStale removes job directories last modified more than olderThan ago.
// It is run at startup to drop leftovers of a crashed process.
func (m *Manager) PurgeStale(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), jobDirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logutils.Log.WithField("count", removed).Info("Removed stale job directories")
	}
	return removed, errors.Join(errs...)
}

// HasEnoughSpace reports whether the downloads filesystem has at least required free bytes.
func (m *Manager) HasEnoughSpace(required int64) bool {
	return HasEnoughSpace(m.root, required)
}

func (m *Manager) checkInside(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(m.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrOutsideRoot
	}
	return nil
}

// AvailableSpace returns the bytes available to unprivileged users on the filesystem holding path.
func AvailableSpace(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

func HasEnoughSpace(path string, requiredSpace int64) bool {
	if requiredSpace < 0 {
		return false
	}
	available, err := AvailableSpace(path)
	if err != nil {
		logutils.Log.WithError(err).Error("Failed to get filesystem stats")
		return false
	}

	logutils.Log.WithFields(map[string]any{
		"required_space":  utils.HumanSize(requiredSpace),
		"available_space": utils.HumanSize(int64(available)),
	}).Debug("Checking available disk space")

	return available >= uint64(requiredSpace)
}
