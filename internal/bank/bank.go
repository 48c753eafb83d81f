// Package bank holds the bounded, ordered collection of memory entries and
// the edit primitives that mutate it.
//
// Indices are 0-based positions in the current ordering and are resolved on
// every call. A Bank is not safe for concurrent use.
package bank

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/rcliao/remem/internal/metrics"
	"github.com/rcliao/remem/internal/model"
	"github.com/rcliao/remem/internal/ring"
)

const (
	DefaultCapacity    = 1000
	DefaultHistorySize = 1000

	mergeTextSep     = "\n---\n"
	mergeFeedbackSep = "; "
)

// Record is one entry in the operation history.
type Record struct {
	Type    string         `json:"operation_type"`
	Details map[string]any `json:"details"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	At      time.Time      `json:"timestamp"`
}

// Bank is an ordered, capacity-bounded list of entries.
type Bank struct {
	entries  []*model.Entry
	capacity int
	history  *ring.Ring[Record]
	logger   *slog.Logger
}

// Option configures a Bank.
type Option func(*Bank)

// WithCapacity bounds the number of entries. Values <= 0 keep the default.
func WithCapacity(n int) Option {
	return func(b *Bank) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithHistorySize bounds the operation history.
func WithHistorySize(n int) Option {
	return func(b *Bank) {
		if n > 0 {
			b.history = ring.New[Record](n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bank) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates an empty bank.
func New(opts ...Option) *Bank {
	b := &Bank{
		capacity: DefaultCapacity,
		history:  ring.New[Record](DefaultHistorySize),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bank")
	return b
}

// Len returns the number of entries.
func (b *Bank) Len() int { return len(b.entries) }

// Capacity returns the maximum number of entries.
func (b *Bank) Capacity() int { return b.capacity }

// SetCapacity changes the bound, evicting the oldest entries if needed.
func (b *Bank) SetCapacity(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", model.ErrValue, n)
	}
	b.capacity = n
	b.evict()
	return nil
}

// At returns the entry at idx.
func (b *Bank) At(idx int) (*model.Entry, error) {
	if err := b.checkIndex(idx); err != nil {
		return nil, err
	}
	return b.entries[idx], nil
}

// Entries returns copies of all entries in order.
func (b *Bank) Entries() []*model.Entry {
	out := make([]*model.Entry, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.Clone()
	}
	return out
}

// IndexOf returns the current position of the entry with id, or -1.
func (b *Bank) IndexOf(id string) int {
	return slices.IndexFunc(b.entries, func(e *model.Entry) bool { return e.ID == id })
}

// Add appends an entry, evicting the oldest entries if capacity is exceeded.
func (b *Bank) Add(e *model.Entry) error {
	if e == nil {
		err := fmt.Errorf("%w: nil entry", model.ErrValue)
		b.record("add", nil, err)
		return err
	}
	if e.ID == "" {
		e.ID = model.NewID(time.Now())
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.entries = append(b.entries, e)
	b.record("add", map[string]any{"entry_id": e.ID, "tag": e.Tag}, nil)
	b.evict()
	return nil
}

// Delete removes the entries at indices. All indices are validated first;
// on any error nothing is removed.
func (b *Bank) Delete(indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if err := b.checkIndex(idx); err != nil {
			b.record("delete", map[string]any{"indices": indices}, err)
			return err
		}
		if seen[idx] {
			err := fmt.Errorf("%w: duplicate index %d", model.ErrValue, idx)
			b.record("delete", map[string]any{"indices": indices}, err)
			return err
		}
		seen[idx] = true
	}

	order := slices.Clone(indices)
	slices.Sort(order)
	ids := make([]string, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		ids = append(ids, b.entries[order[i]].ID)
		b.entries = slices.Delete(b.entries, order[i], order[i]+1)
	}
	b.record("delete", map[string]any{
		"indices":       indices,
		"entry_ids":     ids,
		"deleted_count": len(ids),
	}, nil)
	return nil
}

// Merge folds the entry at the higher index into the one at the lower index.
// The survivor keeps its ID; texts are joined, tags become merged(a,b) and
// the timestamp is the later of the two.
func (b *Bank) Merge(i, j int) error {
	details := map[string]any{"indices": []int{i, j}}
	if i == j {
		err := fmt.Errorf("%w: cannot merge entry %d with itself", model.ErrValue, i)
		b.record("merge", details, err)
		return err
	}
	for _, idx := range []int{i, j} {
		if err := b.checkIndex(idx); err != nil {
			b.record("merge", details, err)
			return err
		}
	}

	lo, hi := min(i, j), max(i, j)
	keep, gone := b.entries[lo], b.entries[hi]
	keep.X = keep.X + mergeTextSep + gone.X
	keep.Y = keep.Y + mergeTextSep + gone.Y
	keep.Feedback = keep.Feedback + mergeFeedbackSep + gone.Feedback
	keep.Tag = fmt.Sprintf("merged(%s,%s)", keep.Tag, gone.Tag)
	if gone.Timestamp.After(keep.Timestamp) {
		keep.Timestamp = gone.Timestamp
	}
	b.entries = slices.Delete(b.entries, hi, hi+1)

	details["entry_id"] = keep.ID
	details["merged_id"] = gone.ID
	b.record("merge", details, nil)
	return nil
}

// Relabel replaces the tag of the entry at idx.
func (b *Bank) Relabel(idx int, tag string) error {
	details := map[string]any{"index": idx, "tag": tag}
	if err := b.checkIndex(idx); err != nil {
		b.record("relabel", details, err)
		return err
	}
	if strings.TrimSpace(tag) == "" {
		err := fmt.Errorf("%w: tag must be non-empty", model.ErrValue)
		b.record("relabel", details, err)
		return err
	}
	e := b.entries[idx]
	details["entry_id"] = e.ID
	details["old_tag"] = e.Tag
	e.Tag = tag
	b.record("relabel", details, nil)
	return nil
}

// Replace swaps in a new ordered set of entries, keeping capacity and history.
func (b *Bank) Replace(entries []*model.Entry) {
	b.entries = slices.Clone(entries)
	b.evict()
}

func (b *Bank) checkIndex(idx int) error {
	if idx < 0 || idx >= len(b.entries) {
		return fmt.Errorf("%w: %d not in [0,%d)", model.ErrIndex, idx, len(b.entries))
	}
	return nil
}

// evict removes oldest-timestamp entries until the bank fits its capacity.
func (b *Bank) evict() {
	if len(b.entries) <= b.capacity {
		return
	}
	original := len(b.entries)
	var ids []string
	for len(b.entries) > b.capacity {
		oldest := 0
		for i, e := range b.entries {
			if e.Timestamp.Before(b.entries[oldest].Timestamp) {
				oldest = i
			}
		}
		ids = append(ids, b.entries[oldest].ID)
		b.entries = slices.Delete(b.entries, oldest, oldest+1)
	}
	b.logger.Info("evicted oldest entries", "deleted", len(ids), "remaining", len(b.entries))
	b.record("prune", map[string]any{
		"original_count":  original,
		"deleted_count":   len(ids),
		"remaining_count": len(b.entries),
		"entry_ids":       ids,
	}, nil)
}

func (b *Bank) record(op string, details map[string]any, err error) {
	if details == nil {
		details = map[string]any{}
	}
	r := Record{Type: op, Details: details, Success: err == nil, At: time.Now().UTC()}
	result := "ok"
	if err != nil {
		r.Error = err.Error()
		result = "error"
		b.logger.Debug("operation failed", "operation", op, "error", err)
	}
	metrics.EditOperations.WithLabelValues(op, result).Inc()
	b.history.Push(r)
}
