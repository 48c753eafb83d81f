package agent

import (
	"errors"
	"testing"
	"time"

	"github.com/rcliao/remem/internal/bank"
	"github.com/rcliao/remem/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestMachine_MaxIterationsForcesAct(t *testing.T) {
	b := bank.New()
	m := NewMachine(b, WithMaxIterations(3), WithTimeout(0))
	m.Initialize("solve it")

	for i := 0; i < 3; i++ {
		tr, err := m.Transition(ActionThink, Payload{Reasoning: "Think: step"})
		if err != nil {
			t.Fatalf("transition %d: %v", i, err)
		}
		if tr.Forced || m.State() != StateThink {
			t.Fatalf("transition %d should not be forced", i)
		}
	}

	if got := m.ForcedReason(ActionThink); got != ReasonMaxIterations {
		t.Errorf("expected upcoming override, got %q", got)
	}
	tr, err := m.Transition(ActionThink, Payload{Reasoning: "Think: still going"})
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Forced || tr.Executed != ActionAct || tr.Reason != ReasonMaxIterations {
		t.Errorf("expected forced act, got %+v", tr)
	}
	if m.State() != StateTerminated {
		t.Errorf("expected TERMINATED, got %s", m.State())
	}
	if b.Len() != 1 {
		t.Fatalf("expected act entry, bank has %d", b.Len())
	}
	e, _ := b.At(0)
	if e.X != "solve it" || e.Y != "Think: still going" || e.Feedback != "forced: max_iterations" || e.Tag != "task" {
		t.Errorf("unexpected entry %+v", e)
	}
	if m.Forced() != ReasonMaxIterations {
		t.Errorf("expected forced reason recorded, got %q", m.Forced())
	}
}

func TestMachine_StuckGuard(t *testing.T) {
	m := NewMachine(bank.New(), WithStuckWindow(3), WithTimeout(0))
	m.Initialize("task")

	m.Transition(ActionThink, Payload{})
	m.Transition(ActionRefine, Payload{})
	m.Transition(ActionRefine, Payload{})
	tr, err := m.Transition(ActionRefine, Payload{Reasoning: "DELETE 0"})
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Forced || tr.Reason != ReasonStuck {
		t.Errorf("expected stuck override, got %+v", tr)
	}
}

func TestMachine_Timeout(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMachine(bank.New(), WithTimeout(time.Minute), WithClock(clock.Now))
	m.Initialize("task")

	if tr, _ := m.Transition(ActionThink, Payload{}); tr.Forced {
		t.Fatal("should not be forced before the deadline")
	}
	clock.t = clock.t.Add(time.Minute)
	tr, err := m.Transition(ActionThink, Payload{Reasoning: "late"})
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Forced || tr.Reason != ReasonTimeout {
		t.Errorf("expected timeout override, got %+v", tr)
	}
}

func TestMachine_StateErrors(t *testing.T) {
	m := NewMachine(bank.New())
	if _, err := m.Transition(ActionThink, Payload{}); !errors.Is(err, ErrNotInitialized) || !errors.Is(err, ErrState) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	m.Initialize("task")
	if _, err := m.Transition("DANCE", Payload{}); !errors.Is(err, ErrState) {
		t.Errorf("expected ErrState for unknown action, got %v", err)
	}
	if _, err := m.Transition(ActionAct, Payload{Result: "Act: done"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Transition(ActionThink, Payload{}); !errors.Is(err, ErrTerminated) || !errors.Is(err, ErrState) {
		t.Errorf("expected ErrTerminated, got %v", err)
	}

	m.Reset()
	if _, err := m.Transition(ActionThink, Payload{}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized after reset, got %v", err)
	}
	if len(m.History(0)) != 0 {
		t.Error("reset should clear history")
	}
}

func TestMachine_RefineAppliesDelta(t *testing.T) {
	b := bank.New()
	for _, x := range []string{"a", "b", "c"} {
		b.Add(model.NewEntry(x, "y", "f", "t"))
	}
	m := NewMachine(b)
	m.Initialize("task")

	tr, err := m.Transition(ActionRefine, Payload{
		Reasoning: "DELETE 0; RELABEL 2 fresh",
		Delta:     &model.Delta{Delete: []int{0}, Relabel: []model.Relabel{{Index: 2, Tag: "fresh"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Edits == nil || tr.Edits.Successful != 2 {
		t.Fatalf("expected two successful edits, got %+v", tr.Edits)
	}
	if m.State() != StateRefine || b.Len() != 2 {
		t.Errorf("unexpected state %s len %d", m.State(), b.Len())
	}
	e, _ := b.At(1)
	if e.X != "c" || e.Tag != "fresh" {
		t.Errorf("relabel should target the original index, got %+v", e)
	}
	if traces := m.Traces(); len(traces) != 1 || traces[0] != "DELETE 0; RELABEL 2 fresh" {
		t.Errorf("unexpected traces %v", traces)
	}
}

func TestMachine_ActRecordsEntry(t *testing.T) {
	b := bank.New()
	m := NewMachine(b)
	m.Initialize("what is 2+2")
	m.Transition(ActionThink, Payload{Reasoning: "Think: add"})
	tr, err := m.Transition(ActionAct, Payload{Result: "Act: 4", Feedback: "correct"})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Forced || tr.EntryID == "" {
		t.Errorf("unexpected transition %+v", tr)
	}
	e := m.Entry()
	if e == nil || e.Y != "4" || e.Feedback != "correct" || e.X != "what is 2+2" {
		t.Errorf("unexpected entry %+v", e)
	}
	if b.IndexOf(tr.EntryID) != 0 {
		t.Error("entry should be in the bank")
	}

	st := m.Statistics()
	if st.Transitions != 2 || st.ActionCounts[ActionThink] != 1 || st.ActionCounts[ActionAct] != 1 {
		t.Errorf("unexpected statistics %+v", st)
	}
	if st.Progress.Percent != 100 {
		t.Errorf("expected 100%% when terminated, got %v", st.Progress.Percent)
	}
}

func TestMachine_PolicyObservesButNeverBypasses(t *testing.T) {
	p := NewStatsPolicy()
	m := NewMachine(bank.New(), WithMaxIterations(1), WithPolicy(p))
	m.Initialize("task")
	m.Transition(ActionThink, Payload{})
	tr, _ := m.Transition(ActionThink, Payload{Reasoning: "r"})
	if !tr.Forced {
		t.Fatal("policy must not prevent forced termination")
	}
	stats := p.Stats()
	if len(stats) != 2 {
		t.Fatalf("expected two observed pairs, got %+v", stats)
	}
	if stats[0].Action != ActionThink || stats[0].MeanReward != 0.1 {
		t.Errorf("unexpected think stat %+v", stats[0])
	}
	if stats[1].Action != ActionAct || stats[1].MeanReward != 0 {
		t.Errorf("forced act should earn nothing, got %+v", stats[1])
	}
}

func TestMachine_Progress(t *testing.T) {
	m := NewMachine(bank.New(), WithMaxIterations(4))
	m.Initialize("task")
	m.Transition(ActionThink, Payload{})
	if p := m.Progress(); p.Iteration != 1 || p.Percent != 25 {
		t.Errorf("unexpected progress %+v", p)
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
		ok   bool
	}{
		{"think", ActionThink, true},
		{"  Refine.", ActionRefine, true},
		{"ACT: now", ActionAct, true},
		{"**Act**", ActionAct, true},
		{"action", "", false},
		{"thinking", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseAction(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseAction(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStripActPrefix(t *testing.T) {
	for in, want := range map[string]string{
		"Act: done":   "done",
		"act:done":    "done",
		"no prefix":   "no prefix",
		"  Act:  x  ": "x",
	} {
		if got := StripActPrefix(in); got != want {
			t.Errorf("StripActPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatsPolicy_Suggest(t *testing.T) {
	p := NewStatsPolicy()
	if got := p.Suggest(StateThink); got != "" {
		t.Errorf("expected no suggestion without data, got %q", got)
	}
	p.Observe(StateThink, ActionThink, Outcome{})
	p.Observe(StateThink, ActionRefine, Outcome{Edits: &bank.BatchResult{Total: 2, Successful: 2}})
	if got := p.Suggest(StateThink); got != ActionRefine {
		t.Errorf("expected refine, got %q", got)
	}

	// A half-failed refine scores 0.1 and ties with think; ties go to think.
	q := NewStatsPolicy()
	q.Observe(StateThink, ActionRefine, Outcome{Edits: &bank.BatchResult{Total: 2, Successful: 1}})
	q.Observe(StateThink, ActionThink, Outcome{})
	if got := q.Suggest(StateThink); got != ActionThink {
		t.Errorf("expected think on tie, got %q", got)
	}
}
