// Package journal records completed task runs in SQLite.
//
// The journal is observability only. Snapshots are the source of truth for
// memory contents; nothing here is read back during recovery.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Run is one completed task.
type Run struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Task         string    `json:"task"`
	Action       string    `json:"action"`
	Status       string    `json:"status"`
	ForcedReason string    `json:"forced_reason,omitempty"`
	Iterations   int       `json:"iterations"`
	Retrieved    int       `json:"retrieved"`
	MemorySize   int       `json:"memory_size"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListParams filters List.
type ListParams struct {
	Status string
	Limit  int
}

// Journal is a SQLite-backed run log.
type Journal struct {
	db      *sql.DB
	path    string
	entropy *rand.Rand
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	j := &Journal{
		db:      db,
		path:    path,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return j, nil
}

func (j *Journal) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), j.entropy).String()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		run_id        TEXT NOT NULL,
		task          TEXT NOT NULL,
		action        TEXT NOT NULL,
		status        TEXT NOT NULL,
		forced_reason TEXT,
		iterations    INTEGER NOT NULL DEFAULT 0,
		retrieved     INTEGER NOT NULL DEFAULT 0,
		memory_size   INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record inserts r, assigning its ID and CreatedAt when unset.
func (j *Journal) Record(ctx context.Context, r *Run) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = j.newID(r.CreatedAt)
	}

	var reason *string
	if r.ForcedReason != "" {
		reason = &r.ForcedReason
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, run_id, task, action, status, forced_reason, iterations, retrieved, memory_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, r.Task, r.Action, r.Status, reason,
		r.Iterations, r.Retrieved, r.MemorySize, r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const runColumns = `id, run_id, task, action, status, forced_reason, iterations, retrieved, memory_size, created_at`

// List returns runs newest first.
func (j *Journal) List(ctx context.Context, p ListParams) ([]Run, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"1 = 1"}
	var args []any
	if p.Status != "" {
		where = append(where, "status = ?")
		args = append(args, p.Status)
	}
	query := `SELECT ` + runColumns + ` FROM runs WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)
	return j.query(ctx, query, args...)
}

// Search returns runs whose task or action contains query, newest first.
func (j *Journal) Search(ctx context.Context, query string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	return j.query(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE task LIKE ? OR action LIKE ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, like, like, limit)
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var reason sql.NullString
	var createdAt string
	err := row.Scan(&r.ID, &r.RunID, &r.Task, &r.Action, &r.Status, &reason,
		&r.Iterations, &r.Retrieved, &r.MemorySize, &createdAt)
	if err != nil {
		return r, err
	}
	if reason.Valid {
		r.ForcedReason = reason.String
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return r, nil
}
