package journal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []*Run{
		{RunID: "a", Task: "first task", Action: "done one", Status: "completed", Iterations: 2, CreatedAt: base},
		{RunID: "b", Task: "second task", Action: "done two", Status: "forced", ForcedReason: "max_iterations", Iterations: 3, CreatedAt: base.Add(time.Minute)},
		{RunID: "c", Task: "third task", Action: "done three", Status: "completed", Iterations: 1, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		if err := j.Record(ctx, r); err != nil {
			t.Fatalf("record: %v", err)
		}
		if r.ID == "" {
			t.Error("expected ID to be assigned")
		}
	}

	got, err := j.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(got))
	}
	if got[0].RunID != "c" || got[2].RunID != "a" {
		t.Errorf("expected newest first, got %s..%s", got[0].RunID, got[2].RunID)
	}
	if !got[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("created_at round trip: got %v", got[0].CreatedAt)
	}

	forced, _ := j.List(ctx, ListParams{Status: "forced"})
	if len(forced) != 1 || forced[0].ForcedReason != "max_iterations" {
		t.Errorf("expected one forced run with reason, got %+v", forced)
	}

	limited, _ := j.List(ctx, ListParams{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected limit 1, got %d", len(limited))
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	j.Record(ctx, &Run{RunID: "1", Task: "deploy service", Action: "rolled out", Status: "completed"})
	j.Record(ctx, &Run{RunID: "2", Task: "write docs", Action: "deploy notes added", Status: "completed"})
	j.Record(ctx, &Run{RunID: "3", Task: "fix bug", Action: "patched", Status: "completed"})

	got, err := j.Search(ctx, "deploy", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 matches, got %d", len(got))
	}

	none, _ := j.Search(ctx, "nonexistent", 10)
	if len(none) != 0 {
		t.Errorf("expected no matches, got %d", len(none))
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	j.Record(ctx, &Run{RunID: "1", Task: "a", Action: "x", Status: "completed", Iterations: 2})
	j.Record(ctx, &Run{RunID: "2", Task: "b", Action: "y", Status: "forced", ForcedReason: "timeout", Iterations: 4})
	j.Record(ctx, &Run{RunID: "3", Task: "c", Action: "z", Status: "forced", ForcedReason: "timeout", Iterations: 6})

	st, err := j.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalRuns != 3 || st.CompletedRuns != 1 || st.ForcedRuns != 2 {
		t.Errorf("unexpected counts %+v", st)
	}
	if st.AvgIterations != 4 {
		t.Errorf("expected avg 4, got %v", st.AvgIterations)
	}
	if len(st.Reasons) != 1 || st.Reasons[0].Reason != "timeout" || st.Reasons[0].Count != 2 {
		t.Errorf("unexpected reasons %+v", st.Reasons)
	}
	if st.DBPath == "" {
		t.Error("expected db path")
	}
}

func TestStats_Empty(t *testing.T) {
	st, err := newTestJournal(t).Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalRuns != 0 || st.AvgIterations != 0 {
		t.Errorf("expected empty stats, got %+v", st)
	}
}

func TestStats_CountErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)
	if err := j.Record(ctx, &Run{RunID: "a", Task: "t", Action: "a", Status: "completed"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Totals still compute without a status column; the per-status counts cannot.
	if _, err := j.db.ExecContext(ctx, `DROP INDEX idx_runs_status; ALTER TABLE runs DROP COLUMN status`); err != nil {
		t.Fatalf("drop status: %v", err)
	}

	if _, err := j.Stats(ctx); err == nil || !strings.Contains(err.Error(), "count completed runs") {
		t.Errorf("expected count error, got %v", err)
	}
}
