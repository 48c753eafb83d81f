// Package store persists banks as versioned, checksummed JSON snapshots.
//
// Writes go to a temp file that is renamed over the target, and the previous
// snapshot is kept as a rotated backup. Load falls back through the backups,
// newest first, when the snapshot fails verification.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rcliao/remem/internal/bank"
	"github.com/rcliao/remem/internal/metrics"
)

// ErrIntegrity reports a snapshot whose version or checksum does not verify.
var ErrIntegrity = errors.New("snapshot integrity")

// Load states.
const (
	StateNoFile    = "no_file"
	StateLoaded    = "loaded"
	StateRecovered = "recovered"
	StateEmpty     = "empty"
)

// Config configures a Store.
type Config struct {
	Path        string
	BackupDir   string // defaults to the snapshot's directory
	MaxBackups  int    // defaults to DefaultMaxBackups
	Capacity    int    // bank capacity; 0 uses the snapshot's max_entries
	HistorySize int
	Strict      bool // return ErrIntegrity instead of an empty bank
	Logger      *slog.Logger
}

// Store reads and writes the snapshot at one path. Two Stores must not
// share a path concurrently.
type Store struct {
	path        string
	backupDir   string
	maxBackups  int
	capacity    int
	historySize int
	strict      bool
	logger      *slog.Logger
	bankLogger  *slog.Logger
}

// LoadResult describes how Load produced its bank.
type LoadResult struct {
	Bank    *bank.Bank
	State   string
	Source  string // file the bank was read from, if any
	Skipped int    // malformed entries dropped
}

// New returns a Store for cfg.Path.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: empty snapshot path")
	}
	s := &Store{
		path:        cfg.Path,
		backupDir:   cfg.BackupDir,
		maxBackups:  cfg.MaxBackups,
		capacity:    cfg.Capacity,
		historySize: cfg.HistorySize,
		strict:      cfg.Strict,
		logger:      cfg.Logger,
	}
	if s.backupDir == "" {
		s.backupDir = filepath.Dir(cfg.Path)
	}
	if s.maxBackups <= 0 {
		s.maxBackups = DefaultMaxBackups
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.bankLogger = s.logger
	s.logger = s.logger.With("component", "store")
	return s, nil
}

// Path returns the snapshot path.
func (s *Store) Path() string { return s.path }

// Save writes b to the snapshot path, backing up any existing snapshot first.
func (s *Store) Save(b *bank.Bank) error {
	data, err := encodeSnapshot(b)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		if _, err := s.backupCurrent(); err != nil {
			return fmt.Errorf("backup before save: %w", err)
		}
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Debug("snapshot saved", "path", s.path, "entries", b.Len())
	return nil
}

// Load reads the snapshot, recovering from backups if it does not verify.
func (s *Store) Load() (*LoadResult, error) {
	res, err := s.load()
	if err != nil {
		metrics.StoreLoads.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.StoreLoads.WithLabelValues(res.State).Inc()
	return res, nil
}

func (s *Store) load() (*LoadResult, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return &LoadResult{Bank: s.newBank(0), State: StateNoFile}, nil
	}

	res, err := s.loadFile(s.path)
	if err == nil {
		res.State = StateLoaded
		return res, nil
	}
	s.logger.Warn("snapshot failed verification, trying backups", "path", s.path, "error", err)

	backups, lerr := s.ListBackups()
	if lerr != nil {
		s.logger.Warn("list backups failed", "error", lerr)
	}
	for _, bk := range backups {
		res, berr := s.loadFile(bk.Path)
		if berr != nil {
			s.logger.Warn("backup failed verification", "path", bk.Path, "error", berr)
			continue
		}
		s.logger.Info("recovered from backup", "path", bk.Path, "entries", res.Bank.Len())
		res.State = StateRecovered
		return res, nil
	}

	if s.strict {
		return nil, fmt.Errorf("load %s: no valid snapshot or backup: %w", s.path, err)
	}
	s.logger.Warn("no valid snapshot or backup, starting empty", "path", s.path)
	return &LoadResult{Bank: s.newBank(0), State: StateEmpty}, nil
}

func (s *Store) loadFile(path string) (*LoadResult, error) {
	snap, err := readSnapshot(path)
	if err != nil {
		if !errors.Is(err, ErrIntegrity) {
			err = fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
		return nil, err
	}
	entries, errs := decodeEntries(snap)
	for _, e := range errs {
		s.logger.Warn("skipping malformed entry", "path", path, "error", e)
	}
	b := s.newBank(snap.MaxEntries)
	b.Replace(entries)
	return &LoadResult{Bank: b, Source: path, Skipped: len(errs)}, nil
}

func (s *Store) newBank(snapshotCapacity int) *bank.Bank {
	capacity := s.capacity
	if capacity <= 0 {
		capacity = snapshotCapacity
	}
	return bank.New(
		bank.WithCapacity(capacity),
		bank.WithHistorySize(s.historySize),
		bank.WithLogger(s.bankLogger),
	)
}
