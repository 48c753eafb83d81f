package journal

import (
	"context"
	"fmt"
	"os"
)

// Stats summarizes the journal.
type Stats struct {
	DBPath        string        `json:"db_path"`
	DBSizeBytes   int64         `json:"db_size_bytes"`
	TotalRuns     int           `json:"total_runs"`
	CompletedRuns int           `json:"completed_runs"`
	ForcedRuns    int           `json:"forced_runs"`
	AvgIterations float64       `json:"avg_iterations"`
	Reasons       []ReasonCount `json:"forced_reasons"`
}

// ReasonCount is the number of runs forced for one reason.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Stats returns journal statistics.
func (j *Journal) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: j.path, Reasons: []ReasonCount{}}

	if info, err := os.Stat(j.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(iterations), 0) FROM runs`).Scan(&st.TotalRuns, &st.AvgIterations)
	if err != nil {
		return st, err
	}
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE status = 'completed'`).Scan(&st.CompletedRuns); err != nil {
		return st, fmt.Errorf("count completed runs: %w", err)
	}
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE status = 'forced'`).Scan(&st.ForcedRuns); err != nil {
		return st, fmt.Errorf("count forced runs: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT forced_reason, COUNT(*) AS cnt
		FROM runs WHERE forced_reason IS NOT NULL
		GROUP BY forced_reason ORDER BY cnt DESC, forced_reason`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var rc ReasonCount
		if err := rows.Scan(&rc.Reason, &rc.Count); err != nil {
			return st, err
		}
		st.Reasons = append(st.Reasons, rc)
	}
	return st, rows.Err()
}
