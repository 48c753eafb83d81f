// Package agent implements the Think/Refine/Act loop.
//
// Machine is the bounded state machine: it applies transitions to a bank and
// overrides any non-ACT request to ACT once the iteration, time or stuck
// bound is hit. Agent drives a Machine with the text capability.
package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rcliao/remem/internal/bank"
	"github.com/rcliao/remem/internal/metrics"
	"github.com/rcliao/remem/internal/model"
	"github.com/rcliao/remem/internal/ring"
)

// State is a loop state.
type State string

const (
	StateThink      State = "THINK"
	StateRefine     State = "REFINE"
	StateAct        State = "ACT"
	StateTerminated State = "TERMINATED"
)

// Action is a requested transition.
type Action string

const (
	ActionThink  Action = "THINK"
	ActionRefine Action = "REFINE"
	ActionAct    Action = "ACT"
)

// Actions lists every action in a fixed order.
var Actions = []Action{ActionThink, ActionRefine, ActionAct}

// Forced-termination reasons.
const (
	ReasonMaxIterations = "max_iterations"
	ReasonTimeout       = "timeout"
	ReasonStuck         = "stuck"
)

const (
	DefaultMaxIterations = 8
	DefaultTimeout       = 30 * time.Second
	DefaultStuckWindow   = 5
	DefaultHistorySize   = 100

	actPrefix = "Act:"
)

var (
	// ErrState is the parent of every state-machine misuse error.
	ErrState = errors.New("invalid state")
	// ErrNotInitialized is returned by Transition before Initialize.
	ErrNotInitialized = fmt.Errorf("%w: not initialized", ErrState)
	// ErrTerminated is returned by Transition after ACT.
	ErrTerminated = fmt.Errorf("%w: already terminated", ErrState)
)

// ParseAction reads an action name from free text such as "think", "Act." or
// "REFINE: tidy up". It reports false when no action is recognized.
func ParseAction(s string) (Action, bool) {
	word := strings.ToUpper(strings.TrimSpace(s))
	word = strings.TrimLeft(word, "*`\"' ")
	for _, a := range Actions {
		if strings.HasPrefix(word, string(a)) {
			rest := word[len(a):]
			if rest == "" || !isLetter(rest[0]) {
				return a, true
			}
		}
	}
	return "", false
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

// Payload carries the data for one transition.
type Payload struct {
	Reasoning string       // THINK trace text, or the raw REFINE command
	Delta     *model.Delta // REFINE
	Result    string       // ACT
	Feedback  string       // ACT
}

// Transition is one history record.
type Transition struct {
	From      State             `json:"from"`
	To        State             `json:"to"`
	Requested Action            `json:"requested"`
	Executed  Action            `json:"executed"`
	Forced    bool              `json:"forced"`
	Reason    string            `json:"reason,omitempty"`
	Iteration int               `json:"iteration"`
	At        time.Time         `json:"at"`
	Edits     *bank.BatchResult `json:"edits,omitempty"`
	EntryID   string            `json:"entry_id,omitempty"`
}

// Machine is the loop state machine for one task at a time. It is not safe
// for concurrent use.
type Machine struct {
	bank          *bank.Bank
	maxIterations int
	timeout       time.Duration
	stuckWindow   int
	policy        Policy
	logger        *slog.Logger
	now           func() time.Time

	initialized bool
	state       State
	task        string
	iteration   int
	started     time.Time
	traces      []string
	requested   []Action
	forced      string
	entry       *model.Entry
	history     *ring.Ring[Transition]
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithMaxIterations sets the iteration bound. Values <= 0 keep the default.
func WithMaxIterations(n int) MachineOption {
	return func(m *Machine) {
		if n > 0 {
			m.maxIterations = n
		}
	}
}

// WithTimeout sets the wall-clock bound. Zero disables it.
func WithTimeout(d time.Duration) MachineOption {
	return func(m *Machine) { m.timeout = d }
}

// WithStuckWindow sets how many identical consecutive requests force ACT.
// Values < 2 disable the guard.
func WithStuckWindow(n int) MachineOption {
	return func(m *Machine) { m.stuckWindow = n }
}

// WithPolicy attaches an advisory policy that observes every transition.
func WithPolicy(p Policy) MachineOption {
	return func(m *Machine) { m.policy = p }
}

// WithMachineLogger sets the logger.
func WithMachineLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

// NewMachine returns an uninitialized machine operating on b.
func NewMachine(b *bank.Bank, opts ...MachineOption) *Machine {
	if b == nil {
		b = bank.New()
	}
	m := &Machine{
		bank:          b,
		maxIterations: DefaultMaxIterations,
		timeout:       DefaultTimeout,
		stuckWindow:   DefaultStuckWindow,
		logger:        slog.Default(),
		now:           time.Now,
		history:       ring.New[Transition](DefaultHistorySize),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "machine")
	return m
}

// Initialize starts a task in THINK at iteration 0.
func (m *Machine) Initialize(task string) {
	m.initialized = true
	m.state = StateThink
	m.task = task
	m.iteration = 0
	m.started = m.now()
	m.traces = nil
	m.requested = nil
	m.forced = ""
	m.entry = nil
}

// Reset returns the machine to its uninitialized state and clears history.
func (m *Machine) Reset() {
	m.initialized = false
	m.state = ""
	m.task = ""
	m.iteration = 0
	m.started = time.Time{}
	m.traces = nil
	m.requested = nil
	m.forced = ""
	m.entry = nil
	m.history.Clear()
}

// ForcedReason reports why a request for action would be overridden to ACT
// right now, or "" if it would not. An empty action checks only the
// iteration and time bounds.
func (m *Machine) ForcedReason(action Action) string {
	if !m.initialized || m.state == StateTerminated {
		return ""
	}
	if m.iteration >= m.maxIterations {
		return ReasonMaxIterations
	}
	if m.timeout > 0 && m.now().Sub(m.started) >= m.timeout {
		return ReasonTimeout
	}
	if action != "" && m.stuckWindow >= 2 && len(m.requested) >= m.stuckWindow-1 {
		stuck := true
		for _, a := range m.requested[len(m.requested)-(m.stuckWindow-1):] {
			if a != action {
				stuck = false
				break
			}
		}
		if stuck {
			return ReasonStuck
		}
	}
	return ""
}

// Transition executes a requested action, or ACT when a bound is hit.
func (m *Machine) Transition(action Action, p Payload) (*Transition, error) {
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	if m.state == StateTerminated {
		return nil, ErrTerminated
	}
	if !validAction(action) {
		return nil, fmt.Errorf("%w: unknown action %q", ErrState, action)
	}

	t := Transition{From: m.state, Requested: action, Executed: action}
	if reason := m.ForcedReason(action); reason != "" {
		t.Reason = reason
		m.forced = reason
		metrics.ForcedActs.WithLabelValues(reason).Inc()
		if action != ActionAct {
			t.Executed = ActionAct
			t.Forced = true
			m.logger.Warn("forcing act", "requested", action, "reason", reason, "iteration", m.iteration)
		}
	}

	m.requested = append(m.requested, action)
	if m.stuckWindow > 0 && len(m.requested) > m.stuckWindow {
		m.requested = m.requested[len(m.requested)-m.stuckWindow:]
	}
	m.iteration++
	t.Iteration = m.iteration

	switch t.Executed {
	case ActionThink:
		if p.Reasoning != "" {
			m.traces = append(m.traces, p.Reasoning)
		}
		m.state = StateThink
	case ActionRefine:
		if p.Reasoning != "" {
			m.traces = append(m.traces, p.Reasoning)
		}
		if !p.Delta.Empty() {
			res := m.bank.ApplyDelta(p.Delta)
			t.Edits = &res
		}
		m.state = StateRefine
	case ActionAct:
		e, err := m.act(p, t.Reason)
		if err != nil {
			return nil, err
		}
		t.EntryID = e.ID
		m.entry = e
		m.state = StateTerminated
	}
	t.To = m.state
	t.At = m.now().UTC()

	if m.policy != nil {
		m.policy.Observe(t.From, t.Executed, Outcome{Forced: t.Forced, Edits: t.Edits})
	}
	m.history.Push(t)
	m.logger.Debug("transition", "from", t.From, "to", t.To, "action", t.Executed, "iteration", t.Iteration)
	return &t, nil
}

func (m *Machine) act(p Payload, reason string) (*model.Entry, error) {
	result := p.Result
	if result == "" && reason != "" {
		result = p.Reasoning
	}
	feedback := p.Feedback
	if feedback == "" && reason != "" {
		feedback = "forced: " + reason
	}
	e := model.NewEntry(m.task, StripActPrefix(result), feedback, "task")
	if err := m.bank.Add(e); err != nil {
		return nil, fmt.Errorf("record act: %w", err)
	}
	return e, nil
}

// StripActPrefix removes a leading "Act:" marker.
func StripActPrefix(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len(actPrefix) && strings.EqualFold(s[:len(actPrefix)], actPrefix) {
		return strings.TrimSpace(s[len(actPrefix):])
	}
	return s
}

func validAction(a Action) bool {
	return a == ActionThink || a == ActionRefine || a == ActionAct
}

// State returns the current state, or "" before Initialize.
func (m *Machine) State() State { return m.state }

// Iteration returns the number of transitions executed for the current task.
func (m *Machine) Iteration() int { return m.iteration }

// Task returns the current task input.
func (m *Machine) Task() string { return m.task }

// Traces returns the THINK and REFINE trace texts so far.
func (m *Machine) Traces() []string {
	out := make([]string, len(m.traces))
	copy(out, m.traces)
	return out
}

// AddTrace appends a note to the trace list without a transition.
func (m *Machine) AddTrace(s string) {
	m.traces = append(m.traces, s)
}

// Forced returns the bound that ended the task, if one did.
func (m *Machine) Forced() string { return m.forced }

// Entry returns the entry recorded by ACT, or nil.
func (m *Machine) Entry() *model.Entry { return m.entry }

// History returns up to limit recent transitions, oldest first.
func (m *Machine) History(limit int) []Transition {
	return m.history.Last(limit)
}

// Policy returns the attached policy, or nil.
func (m *Machine) Policy() Policy { return m.policy }
