package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupSuffix     = ".backup"
	backupTimeFormat = "2006-01-02_150405.000000000"

	// DefaultMaxBackups is the number of backups kept per snapshot.
	DefaultMaxBackups = 5
)

// BackupInfo describes one backup file.
type BackupInfo struct {
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
}

// Backup copies the current snapshot to a new timestamped backup and
// rotates old ones. It fails if there is no snapshot yet.
func (s *Store) Backup() (string, error) {
	if _, err := os.Stat(s.path); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	return s.backupCurrent()
}

func (s *Store) backupCurrent() (string, error) {
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	dst := s.backupPath(time.Now().UTC())
	if err := copyFile(s.path, dst); err != nil {
		return "", err
	}
	s.logger.Debug("snapshot backed up", "backup", dst)
	if err := s.rotate(); err != nil {
		s.logger.Warn("backup rotation failed", "error", err)
	}
	return dst, nil
}

func (s *Store) backupPath(t time.Time) string {
	return filepath.Join(s.backupDir, filepath.Base(s.path)+backupSuffix+"."+t.Format(backupTimeFormat))
}

// ListBackups returns the snapshot's backups, newest first.
func (s *Store) ListBackups() ([]BackupInfo, error) {
	prefix := filepath.Base(s.path) + backupSuffix + "."
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		createdAt, err := time.Parse(backupTimeFormat, strings.TrimPrefix(name, prefix))
		if err != nil {
			createdAt = info.ModTime()
		}
		backups = append(backups, BackupInfo{
			Path:      filepath.Join(s.backupDir, name),
			CreatedAt: createdAt,
			Size:      info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// rotate removes backups beyond the configured maximum.
func (s *Store) rotate() error {
	backups, err := s.ListBackups()
	if err != nil {
		return err
	}
	for i := s.maxBackups; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove old backup: %w", err)
		}
	}
	return nil
}
