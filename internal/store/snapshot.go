package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/mod/semver"

	"github.com/rcliao/remem/internal/bank"
	"github.com/rcliao/remem/internal/model"
)

const (
	// FormatVersion is written to every new snapshot.
	FormatVersion = "2.0.0"
	// OldestVersion is the oldest snapshot format that still loads.
	OldestVersion = "1.0.0"

	generatedBy = "remem"
)

// Snapshot is the on-disk form of a bank.
type Snapshot struct {
	Version    string   `json:"version"`
	MaxEntries int      `json:"max_entries"`
	SavedAt    string   `json:"saved_at,omitempty"`
	Entries    []any    `json:"entries"`
	Metadata   Metadata `json:"metadata"`
}

// Metadata carries integrity information.
type Metadata struct {
	Checksum     string `json:"checksum,omitempty"`
	TotalEntries int    `json:"total_entries"`
	GeneratedBy  string `json:"generated_by,omitempty"`
}

// Checksum is the SHA-256 hex digest of the canonical JSON encoding of the
// entries payload.
func Checksum(entries []any) (string, error) {
	if entries == nil {
		entries = []any{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func encodeSnapshot(b *bank.Bank) ([]byte, error) {
	entries := b.Entries()
	payload := make([]any, len(entries))
	for i, e := range entries {
		payload[i] = e.ToMap()
	}
	sum, err := Checksum(payload)
	if err != nil {
		return nil, fmt.Errorf("checksum: %w", err)
	}
	snap := Snapshot{
		Version:    FormatVersion,
		MaxEntries: b.Capacity(),
		SavedAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Entries:    payload,
		Metadata: Metadata{
			Checksum:     sum,
			TotalEntries: len(payload),
			GeneratedBy:  generatedBy,
		},
	}
	return json.MarshalIndent(snap, "", "  ")
}

// readRaw decodes the file at path without verifying it.
func readRaw(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrIntegrity, path, err)
	}
	if snap.Version == "" {
		snap.Version = OldestVersion
	}
	return &snap, nil
}

// readSnapshot decodes and verifies the file at path. Verification failures
// wrap ErrIntegrity.
func readSnapshot(path string) (*Snapshot, error) {
	snap, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	if err := verify(snap); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

func verify(snap *Snapshot) error {
	if snap.Version == "" {
		snap.Version = OldestVersion
	}
	if !SupportedVersion(snap.Version) {
		return fmt.Errorf("%w: unsupported version %q", ErrIntegrity, snap.Version)
	}
	if snap.Entries == nil {
		return fmt.Errorf("%w: missing entries", ErrIntegrity)
	}

	legacy := semver.Major("v"+snap.Version) != semver.Major("v"+FormatVersion)
	if snap.Metadata.Checksum == "" {
		if legacy {
			return nil
		}
		return fmt.Errorf("%w: missing checksum", ErrIntegrity)
	}
	sum, err := Checksum(snap.Entries)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	if sum != snap.Metadata.Checksum {
		return fmt.Errorf("%w: checksum mismatch", ErrIntegrity)
	}
	return nil
}

// SupportedVersion reports whether v is between OldestVersion and FormatVersion.
func SupportedVersion(v string) bool {
	sv := "v" + v
	if !semver.IsValid(sv) {
		return false
	}
	return semver.Compare(sv, "v"+OldestVersion) >= 0 && semver.Compare(sv, "v"+FormatVersion) <= 0
}

// decodeEntries converts snapshot entries, skipping malformed ones.
func decodeEntries(snap *Snapshot) ([]*model.Entry, []error) {
	var out []*model.Entry
	var errs []error
	for i, raw := range snap.Entries {
		m, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Errorf("entry %d: %w: not an object", i, model.ErrType))
			continue
		}
		e, err := model.FromMap(m)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		out = append(out, e)
	}
	return out, errs
}
