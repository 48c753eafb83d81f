package bank

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/rcliao/remem/internal/metrics"
	"github.com/rcliao/remem/internal/model"
)

// ErrFormat marks a ranking response that could not be interpreted.
var ErrFormat = errors.New("unrecognized ranking format")

// DefaultScore is used for missing or invalid scores.
const DefaultScore = 0.5

// Ranking is one ranked position returned by a Ranker.
type Ranking struct {
	Index         int
	Score         float64
	Semantic      float64
	Applicability float64
	Timeliness    float64
	Explanation   string
}

// Ranker orders entries by relevance to a query. Implementations return at
// most k rankings, most relevant first.
type Ranker interface {
	Rank(ctx context.Context, entries []*model.Entry, query string, k int) ([]Ranking, error)
}

// Retrieve returns the k entries most relevant to query. An empty bank or
// k <= 0 returns nothing without consulting the ranker. When the ranker fails
// or returns nothing usable, the lexical ranker answers instead; only context
// cancellation is returned as an error.
func (b *Bank) Retrieve(ctx context.Context, r Ranker, query string, k int, explain bool) ([]model.RetrievalResult, error) {
	k = min(k, len(b.entries))
	if k <= 0 {
		return []model.RetrievalResult{}, nil
	}
	if r == nil {
		r = LexicalRanker{}
	}

	rankings, err := r.Rank(ctx, b.entries, query, k)
	results := b.collect(rankings, k, explain)
	if err != nil || len(results) == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		cause := "empty"
		switch {
		case errors.Is(err, ErrFormat):
			cause = "format"
		case err != nil:
			cause = "capability"
		}
		b.logger.Warn("ranker failed, using lexical fallback", "cause", cause, "error", err)
		metrics.RetrievalFallbacks.WithLabelValues(cause).Inc()
		rankings, _ = LexicalRanker{}.Rank(ctx, b.entries, query, k)
		results = b.collect(rankings, k, explain)
	}
	return results, nil
}

// collect drops invalid and repeated indices, normalizes scores and sorts
// by score, keeping the ranker's order among ties.
func (b *Bank) collect(rankings []Ranking, k int, explain bool) []model.RetrievalResult {
	seen := map[int]bool{}
	out := []model.RetrievalResult{}
	for _, rk := range rankings {
		if rk.Index < 0 || rk.Index >= len(b.entries) || seen[rk.Index] {
			continue
		}
		seen[rk.Index] = true
		res := model.RetrievalResult{
			Entry:         b.entries[rk.Index].Clone(),
			Index:         rk.Index,
			Score:         NormalizeScore(rk.Score),
			Semantic:      NormalizeScore(rk.Semantic),
			Applicability: NormalizeScore(rk.Applicability),
			Timeliness:    NormalizeScore(rk.Timeliness),
		}
		if explain {
			res.Explanation = rk.Explanation
		}
		out = append(out, res)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// NormalizeScore clamps s to [0,1] and rounds it to two decimals.
// NaN becomes DefaultScore.
func NormalizeScore(s float64) float64 {
	if math.IsNaN(s) {
		return DefaultScore
	}
	s = math.Max(0, math.Min(1, s))
	return math.Round(s*100) / 100
}
