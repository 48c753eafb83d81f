package agent

import (
	"math"
	"time"
)

// Progress is a point-in-time view of the current task.
type Progress struct {
	State         State         `json:"state"`
	Iteration     int           `json:"iteration"`
	MaxIterations int           `json:"max_iterations"`
	Percent       float64       `json:"progress_percent"`
	Elapsed       time.Duration `json:"elapsed"`
	Forced        string        `json:"forced_reason,omitempty"`
}

// Progress reports how far the current task is toward its iteration bound.
func (m *Machine) Progress() Progress {
	p := Progress{
		State:         m.state,
		Iteration:     m.iteration,
		MaxIterations: m.maxIterations,
		Forced:        m.forced,
	}
	if m.initialized {
		p.Elapsed = m.now().Sub(m.started)
	}
	if m.state == StateTerminated {
		p.Percent = 100
	} else if m.maxIterations > 0 {
		p.Percent = math.Min(100, math.Round(float64(m.iteration)/float64(m.maxIterations)*10000)/100)
	}
	return p
}

// Statistics summarizes the transition history.
type Statistics struct {
	Progress     Progress       `json:"progress"`
	Transitions  int            `json:"transitions"`
	ActionCounts map[Action]int `json:"action_counts"`
	ForcedCount  int            `json:"forced_count"`
	Policy       []ActionStat   `json:"policy,omitempty"`
}

// Statistics reports counts over the retained history.
func (m *Machine) Statistics() Statistics {
	st := Statistics{Progress: m.Progress(), ActionCounts: map[Action]int{}}
	for _, t := range m.history.Items() {
		st.Transitions++
		st.ActionCounts[t.Executed]++
		if t.Forced {
			st.ForcedCount++
		}
	}
	if sp, ok := m.policy.(*StatsPolicy); ok {
		st.Policy = sp.Stats()
	}
	return st
}
