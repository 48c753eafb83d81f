package store

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rcliao/remem/internal/bank"
)

// ExportToFile writes b as a snapshot at path. No backup is taken.
func ExportToFile(b *bank.Bank, path string) error {
	data, err := encodeSnapshot(b)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return writeAtomic(path, data)
}

// ImportStats counts what ImportFromFile did.
type ImportStats struct {
	Added   int `json:"imported"`
	Skipped int `json:"skipped"`
}

// ImportFromFile reads the snapshot at path. With a nil into it returns a
// new bank holding the file's entries; otherwise it appends entries whose
// IDs are not already in into. Malformed entries are logged and counted as
// skipped.
func ImportFromFile(path string, into *bank.Bank) (*bank.Bank, ImportStats, error) {
	var st ImportStats
	snap, err := readSnapshot(path)
	if err != nil {
		return nil, st, fmt.Errorf("import: %w", err)
	}
	entries, errs := decodeEntries(snap)
	st.Skipped = len(errs)
	for _, e := range errs {
		slog.Default().Warn("skipping malformed entry", "component", "store", "path", path, "error", e)
	}

	if into == nil {
		b := bank.New(bank.WithCapacity(snap.MaxEntries))
		b.Replace(entries)
		st.Added = b.Len()
		return b, st, nil
	}

	for _, e := range entries {
		if into.IndexOf(e.ID) >= 0 {
			continue
		}
		if err := into.Add(e); err != nil {
			return into, st, err
		}
		st.Added++
	}
	return into, st, nil
}

// Report is the result of ValidateFile.
type Report struct {
	Path            string   `json:"path"`
	Valid           bool     `json:"valid"`
	Version         string   `json:"version,omitempty"`
	Supported       bool     `json:"supported_version"`
	ChecksumPresent bool     `json:"checksum_present"`
	EntryCount      int      `json:"entry_count"`
	ValidEntries    int      `json:"valid_entries"`
	EntryErrors     []string `json:"entry_errors,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// ValidateFile checks the snapshot at path without loading it into a bank.
func ValidateFile(path string) Report {
	r := Report{Path: path}
	snap, err := readSnapshot(path)
	if err != nil {
		r.Error = err.Error()
		if snap, rerr := readRaw(path); rerr == nil {
			r.Version = snap.Version
			r.Supported = SupportedVersion(snap.Version)
			r.ChecksumPresent = snap.Metadata.Checksum != ""
			r.EntryCount = len(snap.Entries)
		}
		return r
	}

	r.Version = snap.Version
	r.Supported = true
	r.ChecksumPresent = snap.Metadata.Checksum != ""
	r.EntryCount = len(snap.Entries)
	entries, errs := decodeEntries(snap)
	r.ValidEntries = len(entries)
	for _, e := range errs {
		r.EntryErrors = append(r.EntryErrors, e.Error())
	}
	r.Valid = len(errs) == 0
	return r
}

// Info summarizes a snapshot file.
type Info struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size_bytes"`
	ModTime    time.Time `json:"modified_at"`
	Version    string    `json:"version"`
	MaxEntries int       `json:"max_entries"`
	EntryCount int       `json:"entry_count"`
	SavedAt    string    `json:"saved_at,omitempty"`
	Checksum   string    `json:"checksum,omitempty"`
}

// FileInfo reports file metadata and the snapshot header of path. It does
// not verify the checksum.
func FileInfo(path string) (*Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	snap, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	return &Info{
		Path:       path,
		Size:       st.Size(),
		ModTime:    st.ModTime(),
		Version:    snap.Version,
		MaxEntries: snap.MaxEntries,
		EntryCount: len(snap.Entries),
		SavedAt:    snap.SavedAt,
		Checksum:   snap.Metadata.Checksum,
	}, nil
}
