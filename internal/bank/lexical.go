package bank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rcliao/remem/internal/chunker"
	"github.com/rcliao/remem/internal/model"
)

const fallbackExplanation = "fallback retrieval: recency order"

// LexicalRanker ranks by keyword overlap between the query and the best
// matching passage of each entry. Entries without overlap score DefaultScore
// and are ordered newest first. It never fails.
type LexicalRanker struct {
	Options chunker.Options
}

type lexicalCandidate struct {
	index   int
	overlap float64
	matched []string
	entry   *model.Entry
}

// Rank implements Ranker.
func (l LexicalRanker) Rank(_ context.Context, entries []*model.Entry, query string, k int) ([]Ranking, error) {
	terms := chunker.Terms(query)
	cands := make([]lexicalCandidate, 0, len(entries))
	for i, e := range entries {
		c := lexicalCandidate{index: i, entry: e}
		if len(terms) > 0 {
			c.overlap, c.matched = l.bestOverlap(e, terms)
		}
		cands = append(cands, c)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.overlap != b.overlap {
			return a.overlap > b.overlap
		}
		if !a.entry.Timestamp.Equal(b.entry.Timestamp) {
			return a.entry.Timestamp.After(b.entry.Timestamp)
		}
		return a.index < b.index
	})

	if k > len(cands) {
		k = len(cands)
	}
	out := make([]Ranking, 0, k)
	for _, c := range cands[:k] {
		r := Ranking{Index: c.index, Score: DefaultScore, Explanation: fallbackExplanation}
		if c.overlap > 0 {
			r.Score = DefaultScore + c.overlap/2
			r.Semantic = c.overlap
			r.Explanation = fmt.Sprintf("keyword overlap: %s", strings.Join(c.matched, ", "))
		}
		r.Applicability = r.Score
		r.Timeliness = DefaultScore
		out = append(out, r)
	}
	return out, nil
}

func (l LexicalRanker) bestOverlap(e *model.Entry, terms []string) (float64, []string) {
	var passages []chunker.Passage
	for _, f := range []struct{ name, text string }{{"x", e.X}, {"y", e.Y}, {"feedback", e.Feedback}, {"tag", e.Tag}} {
		passages = append(passages, chunker.Split(f.name, f.text, l.Options)...)
	}

	best, bestMatched := 0.0, []string(nil)
	for _, p := range passages {
		have := map[string]bool{}
		for _, t := range chunker.Terms(p.Text) {
			have[t] = true
		}
		var matched []string
		for _, t := range terms {
			if have[t] {
				matched = append(matched, t)
			}
		}
		if score := float64(len(matched)) / float64(len(terms)); score > best {
			best, bestMatched = score, matched
		}
	}
	return best, bestMatched
}
