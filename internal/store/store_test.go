package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/remem/internal/bank"
	"github.com/rcliao/remem/internal/model"
)

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "memory.json")
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func filledBank(t *testing.T, n int) *bank.Bank {
	t.Helper()
	b := bank.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		e := model.NewEntry("task", "answer", "ok", "t")
		e.X = e.X + string(rune('a'+i))
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, b.Add(e))
	}
	return b
}

func ids(b *bank.Bank) []string {
	var out []string
	for _, e := range b.Entries() {
		out = append(out, e.ID)
	}
	return out
}

func TestLoad_NoFile(t *testing.T) {
	s := newTestStore(t, Config{})
	res, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, StateNoFile, res.State)
	assert.Equal(t, 0, res.Bank.Len())
	assert.Equal(t, bank.DefaultCapacity, res.Bank.Capacity())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t, Config{})
	b := filledBank(t, 3)
	require.NoError(t, b.SetCapacity(50))
	require.NoError(t, s.Save(b))

	res, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, res.State)
	assert.Equal(t, s.Path(), res.Source)
	assert.Equal(t, ids(b), ids(res.Bank))
	assert.Equal(t, 50, res.Bank.Capacity())

	got, _ := res.Bank.At(2)
	want, _ := b.At(2)
	assert.Equal(t, want.X, got.X)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
}

func TestSaveLoad_InvalidUTF8(t *testing.T) {
	s := newTestStore(t, Config{})
	b := bank.New()
	require.NoError(t, b.Add(model.NewEntry("good", "answer", "ok", "t")))
	require.NoError(t, b.Add(model.NewEntry("bad \xff bytes", "answer", "ok", "t")))
	raw := model.NewEntry("raw", "answer", "ok", "t")
	raw.Y = "broken \xc3("
	require.NoError(t, b.Add(raw))
	require.NoError(t, s.Save(b))

	res, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, res.State)
	assert.Equal(t, ids(b), ids(res.Bank))

	got, _ := res.Bank.At(1)
	assert.Equal(t, "bad \uFFFD bytes", got.X)
	got, _ = res.Bank.At(2)
	assert.Equal(t, "broken \uFFFD(", got.Y)

	assert.True(t, ValidateFile(s.Path()).Valid)
}

func TestSave_WritesVersionAndChecksum(t *testing.T) {
	s := newTestStore(t, Config{})
	require.NoError(t, s.Save(filledBank(t, 2)))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, FormatVersion, snap.Version)
	assert.Equal(t, 2, snap.Metadata.TotalEntries)
	sum, err := Checksum(snap.Entries)
	require.NoError(t, err)
	assert.Equal(t, sum, snap.Metadata.Checksum)

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(s.Path()), "*.tmp"))
	assert.Empty(t, leftovers, "temp files should be renamed away")
}

func TestLoad_RecoversFromBackup(t *testing.T) {
	s := newTestStore(t, Config{})
	first := filledBank(t, 2)
	require.NoError(t, s.Save(first))
	require.NoError(t, s.Save(filledBank(t, 4)))

	// Corrupt the current snapshot; the backup holds the first save.
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"version":"2.0.0","entries":[`), 0o644))

	res, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, StateRecovered, res.State)
	assert.Equal(t, ids(first), ids(res.Bank))
	assert.NotEqual(t, s.Path(), res.Source)
}

func TestLoad_ChecksumMismatch(t *testing.T) {
	s := newTestStore(t, Config{})
	require.NoError(t, s.Save(filledBank(t, 2)))

	data, _ := os.ReadFile(s.Path())
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	entries := raw["entries"].([]any)
	entries[0].(map[string]any)["y"] = "tampered"
	data, _ = json.Marshal(raw)
	require.NoError(t, os.WriteFile(s.Path(), data, 0o644))

	res, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, res.State)
	assert.Equal(t, 0, res.Bank.Len())
}

func TestLoad_StrictReturnsIntegrityError(t *testing.T) {
	s := newTestStore(t, Config{Strict: true})
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json"), 0o644))

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestLoad_LegacySnapshot(t *testing.T) {
	s := newTestStore(t, Config{})
	legacy := `{
		"max_entries": 10,
		"entries": [
			{"uuid": "old-1", "cue": "legacy task", "response": "legacy answer", "outcome": "good", "label": "old", "created_at": "2024-05-01T10:00:00"},
			{"x": "current", "y": "names", "feedback": "", "tag": "new", "timestamp": "not a time"},
			{"x": 42},
			"garbage"
		]
	}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(legacy), 0o644))

	res, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, res.State)
	assert.Equal(t, 2, res.Bank.Len())
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 10, res.Bank.Capacity())

	e, _ := res.Bank.At(0)
	assert.Equal(t, "old-1", e.ID)
	assert.Equal(t, "legacy task", e.X)
	assert.Equal(t, "good", e.Feedback)
	assert.Equal(t, "old", e.Tag)
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	s := newTestStore(t, Config{Strict: true})
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"version":"9.0.0","entries":[]}`), 0o644))
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestLoad_CapacityOverride(t *testing.T) {
	s := newTestStore(t, Config{})
	require.NoError(t, s.Save(filledBank(t, 5)))

	small := newTestStore(t, Config{Path: s.Path(), Capacity: 3})
	res, err := small.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, res.Bank.Len())
	e, _ := res.Bank.At(0)
	assert.Equal(t, "taskc", e.X, "oldest entries are evicted")
}

func TestBackups_Rotate(t *testing.T) {
	s := newTestStore(t, Config{MaxBackups: 2})
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(filledBank(t, i+1)))
	}
	backups, err := s.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.True(t, backups[0].CreatedAt.After(backups[1].CreatedAt), "newest first")
}

func TestBackup_Explicit(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, Config{BackupDir: filepath.Join(dir, "backups")})

	_, err := s.Backup()
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, s.Save(filledBank(t, 1)))
	path, err := s.Backup()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backups"), filepath.Dir(path))
	assert.Contains(t, filepath.Base(path), "memory.json.backup.")

	backups, err := s.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, path, backups[0].Path)
}

func TestListBackups_MissingDir(t *testing.T) {
	s := newTestStore(t, Config{BackupDir: filepath.Join(t.TempDir(), "absent")})
	backups, err := s.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, backups)
}
