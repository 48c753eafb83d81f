package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/remem/internal/bank"
	"github.com/rcliao/remem/internal/editor"
	"github.com/rcliao/remem/internal/journal"
	"github.com/rcliao/remem/internal/llm"
	"github.com/rcliao/remem/internal/metrics"
	"github.com/rcliao/remem/internal/model"
)

// DefaultRetrievalK is the number of memories retrieved per iteration.
const DefaultRetrievalK = 5

// Task statuses.
const (
	StatusCompleted = "completed"
	StatusForced    = "forced"
)

// Saver persists the bank after a task.
type Saver interface {
	Save(b *bank.Bank) error
}

// Recorder logs completed runs.
type Recorder interface {
	Record(ctx context.Context, r *journal.Run) error
}

// Config bounds the loop.
type Config struct {
	MaxIterations int
	Timeout       time.Duration
	StuckWindow   int
	RetrievalK    int
	ContextBudget int // tokens
}

// DefaultConfig returns the default loop bounds.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		Timeout:       DefaultTimeout,
		StuckWindow:   DefaultStuckWindow,
		RetrievalK:    DefaultRetrievalK,
		ContextBudget: DefaultContextBudget,
	}
}

// TaskResult is the outcome of RunTask.
type TaskResult struct {
	RunID        string   `json:"run_id"`
	Action       string   `json:"action"`
	Traces       []string `json:"traces"`
	Iterations   int      `json:"iterations"`
	Status       string   `json:"status"`
	ForcedReason string   `json:"forced_reason,omitempty"`
	Retrieved    int      `json:"retrieved_count"`
	MemorySize   int      `json:"memory_size"`
	EntryID      string   `json:"entry_id"`
}

// Agent runs tasks against a bank using a text capability.
type Agent struct {
	bank    *bank.Bank
	client  llm.Client
	ranker  bank.Ranker
	saver   Saver
	journal Recorder
	policy  Policy
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithRanker sets the retrieval ranker. Nil uses lexical ranking.
func WithRanker(r bank.Ranker) Option { return func(a *Agent) { a.ranker = r } }

// WithSaver persists the bank after every completed task.
func WithSaver(s Saver) Option { return func(a *Agent) { a.saver = s } }

// WithJournal records every completed task.
func WithJournal(r Recorder) Option { return func(a *Agent) { a.journal = r } }

// WithAgentPolicy attaches an advisory policy shared across tasks.
func WithAgentPolicy(p Policy) Option { return func(a *Agent) { a.policy = p } }

// WithConfig sets the loop bounds. Zero fields keep their defaults, except
// Timeout where zero disables the bound.
func WithConfig(c Config) Option {
	return func(a *Agent) {
		d := DefaultConfig()
		if c.MaxIterations <= 0 {
			c.MaxIterations = d.MaxIterations
		}
		if c.RetrievalK <= 0 {
			c.RetrievalK = d.RetrievalK
		}
		if c.ContextBudget <= 0 {
			c.ContextBudget = d.ContextBudget
		}
		a.cfg = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithAgentClock replaces time.Now for the machine's time bound.
func WithAgentClock(now func() time.Time) Option { return func(a *Agent) { a.now = now } }

// New returns an Agent over b.
func New(b *bank.Bank, client llm.Client, opts ...Option) *Agent {
	a := &Agent{
		bank:   b,
		client: client,
		cfg:    DefaultConfig(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.bank == nil {
		a.bank = bank.New(bank.WithLogger(a.logger))
	}
	a.logger = a.logger.With("component", "agent")
	return a
}

// Bank returns the agent's bank.
func (a *Agent) Bank() *bank.Bank { return a.bank }

// RunTask drives one task to ACT. Think and Act capability failures return
// an error wrapping llm.ErrCapability and leave the bank without a new entry.
func (a *Agent) RunTask(ctx context.Context, task string) (*TaskResult, error) {
	runID := uuid.NewString()
	log := a.logger.With("run_id", runID)

	m := NewMachine(a.bank,
		WithMaxIterations(a.cfg.MaxIterations),
		WithTimeout(a.cfg.Timeout),
		WithStuckWindow(a.cfg.StuckWindow),
		WithPolicy(a.policy),
		WithMachineLogger(a.logger),
		WithClock(a.now),
	)
	m.Initialize(task)
	log.Info("task started", "task", truncate(task, 100))

	var retrieved []model.RetrievalResult
	for m.State() != StateTerminated {
		var err error
		retrieved, err = a.bank.Retrieve(ctx, a.ranker, task, a.cfg.RetrievalK, false)
		if err != nil {
			return nil, err
		}
		memories := PackContext(retrieved, a.cfg.ContextBudget).Text

		requested, err := a.choose(ctx, m, memories)
		if err != nil {
			return nil, err
		}
		executed := requested
		forced := m.ForcedReason(requested) != ""
		if forced {
			executed = ActionAct
		}

		p, err := a.step(ctx, m, executed, memories)
		if err != nil {
			log.Error("step failed", "action", executed, "iteration", m.Iteration(), "error", err)
			return nil, err
		}
		if forced {
			// Let the machine record the forced reason as feedback.
			p.Feedback = ""
		}
		if _, err := m.Transition(requested, p); err != nil {
			return nil, err
		}
	}

	res := &TaskResult{
		RunID:        runID,
		Traces:       m.Traces(),
		Iterations:   m.Iteration(),
		Status:       StatusCompleted,
		ForcedReason: m.Forced(),
		Retrieved:    len(retrieved),
		MemorySize:   a.bank.Len(),
	}
	if e := m.Entry(); e != nil {
		res.Action = e.Y
		res.EntryID = e.ID
	}
	if res.ForcedReason != "" {
		res.Status = StatusForced
	}
	log.Info("task finished", "status", res.Status, "iteration", res.Iterations, "reason", res.ForcedReason)

	if a.saver != nil {
		if err := a.saver.Save(a.bank); err != nil {
			return res, fmt.Errorf("save bank: %w", err)
		}
	}
	if a.journal != nil {
		run := &journal.Run{
			RunID:        res.RunID,
			Task:         task,
			Action:       res.Action,
			Status:       res.Status,
			ForcedReason: res.ForcedReason,
			Iterations:   res.Iterations,
			Retrieved:    res.Retrieved,
			MemorySize:   res.MemorySize,
		}
		if err := a.journal.Record(ctx, run); err != nil {
			log.Warn("journal record failed", "error", err)
		}
	}
	return res, nil
}

// choose asks the capability for the next action. When a bound is already
// hit it returns ACT without a call. Unusable answers fall back to the
// policy suggestion, then ACT.
func (a *Agent) choose(ctx context.Context, m *Machine, memories string) (Action, error) {
	if m.ForcedReason("") != "" {
		return ActionAct, nil
	}
	var hint Action
	if a.policy != nil {
		hint = a.policy.Suggest(m.State())
	}

	text, err := a.generate(ctx, "select", selectPrompt(m.Task(), memories, m.Traces(), hint))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.logger.Warn("action selection failed", "error", err)
	} else if action, ok := ParseAction(text); ok {
		return action, nil
	} else {
		a.logger.Warn("unrecognized action", "response", truncate(text, 80))
	}
	if hint != "" {
		return hint, nil
	}
	return ActionAct, nil
}

func (a *Agent) step(ctx context.Context, m *Machine, action Action, memories string) (Payload, error) {
	switch action {
	case ActionThink:
		text, err := a.generate(ctx, "think", thinkPrompt(m.Task(), memories, m.Traces()))
		if err != nil {
			return Payload{}, err
		}
		return Payload{Reasoning: ensurePrefix("Think:", text)}, nil

	case ActionRefine:
		cmd, err := a.generate(ctx, "refine", refinePrompt(m.Task(), a.bank.Entries(), m.Traces()))
		if err != nil {
			if ctx.Err() != nil {
				return Payload{}, ctx.Err()
			}
			m.AddTrace(fmt.Sprintf("refine skipped: %v", err))
			return Payload{Delta: &model.Delta{}}, nil
		}
		delta, err := editor.Parse(cmd)
		if err != nil {
			m.AddTrace(fmt.Sprintf("refine rejected: %v", err))
			return Payload{Reasoning: cmd, Delta: &model.Delta{}}, nil
		}
		return Payload{Reasoning: cmd, Delta: delta}, nil

	default:
		text, err := a.generate(ctx, "act", actPrompt(m.Task(), memories, m.Traces()))
		if err != nil {
			return Payload{}, err
		}
		return Payload{Result: ensurePrefix(actPrefix, text), Feedback: "success"}, nil
	}
}

func (a *Agent) generate(ctx context.Context, purpose, prompt string) (string, error) {
	start := time.Now()
	text, err := a.client.Generate(ctx, prompt, llm.GenerationParams{})
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CapabilityCalls.WithLabelValues(purpose, result).Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, llm.ErrCapability) {
			err = fmt.Errorf("%w: %s: %w", llm.ErrCapability, purpose, err)
		}
		return "", err
	}
	return text, nil
}
