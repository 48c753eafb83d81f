package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rcliao/remem/internal/llm"
	"github.com/rcliao/remem/internal/model"
)

// OracleRanker asks the text capability to rank entries and parses its
// JSON answer.
type OracleRanker struct {
	Client       llm.Client
	Params       llm.GenerationParams
	DefaultScore float64
}

// Rank implements Ranker.
func (o *OracleRanker) Rank(ctx context.Context, entries []*model.Entry, query string, k int) ([]Ranking, error) {
	out, err := o.Client.Generate(ctx, RankingPrompt(entries, query, k), o.Params)
	if err != nil {
		return nil, fmt.Errorf("oracle rank: %w", err)
	}
	rankings, err := ParseRanking(out, o.DefaultScore)
	if err != nil {
		return nil, err
	}
	if len(rankings) > k {
		rankings = rankings[:k]
	}
	return rankings, nil
}

// RankingPrompt builds the ranking request. Entries are numbered from 0.
func RankingPrompt(entries []*model.Entry, query string, k int) string {
	var b strings.Builder
	b.WriteString("You are a memory retriever. Rank the memory entries below by how useful they are for the task.\n\n")
	b.WriteString("Task:\n")
	b.WriteString(query)
	b.WriteString("\n\nMemory entries (indexed from 0):\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "\n[%d]\n%s\n", i, e.Text())
	}
	fmt.Fprintf(&b, "\nReturn at most %d entries, most relevant first, as JSON only:\n", k)
	b.WriteString(`{"results":[{"index":0,"relevance_score":0.9,"semantic_relevance":0.9,"task_applicability":0.8,"timeliness":0.7,"explanation":"short reason"}]}`)
	b.WriteString("\nAll scores are between 0 and 1. relevance_score weighs semantic relevance 0.5, task applicability 0.3 and timeliness 0.2.\n")
	return b.String()
}

var (
	fencedBlock   = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	pyLiteral     = regexp.MustCompile(`\b(True|False|None)\b`)
	bareIndexList = regexp.MustCompile(`^\[?\s*\d+(\s*[,\s]\s*\d+)*\s*\]?$`)
	digitRun      = regexp.MustCompile(`\d+`)
)

// ParseRanking interprets a ranking response. It accepts JSON wrapped in a
// fenced block or prose, single-quoted pseudo-JSON, trailing commas, a
// top-level array, and a bare index list such as "1, 5, 2". An invalid
// default score is replaced by DefaultScore.
func ParseRanking(text string, def float64) ([]Ranking, error) {
	if math.IsNaN(def) || def < 0 || def > 1 {
		def = DefaultScore
	}
	body := strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}

	if doc, ok := decodeLoose(body); ok {
		if items, ok := resultItems(doc); ok {
			out := make([]Ranking, 0, len(items))
			for _, item := range items {
				if r, ok := rankingFrom(item, def); ok {
					out = append(out, r)
				}
			}
			if len(out) > 0 {
				return out, nil
			}
		}
	}

	if bareIndexList.MatchString(body) {
		var out []Ranking
		for _, d := range digitRun.FindAllString(body, -1) {
			idx, _ := strconv.Atoi(d)
			out = append(out, Ranking{Index: idx, Score: def})
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %.80q", ErrFormat, body)
}

// decodeLoose finds the outermost JSON object (or, failing that, array) in s.
// Each candidate is retried once with Python-style quoting and literals normalized.
func decodeLoose(s string) (any, bool) {
	for _, delim := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(s, delim[0])
		end := strings.LastIndex(s, delim[1])
		if start < 0 || end <= start {
			continue
		}
		if doc, ok := decodeFragment(s[start : end+1]); ok {
			return doc, true
		}
	}
	return nil, false
}

func decodeFragment(raw string) (any, bool) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err == nil {
		return doc, true
	}
	fixed := trailingComma.ReplaceAllString(raw, "$1")
	fixed = pyLiteral.ReplaceAllStringFunc(fixed, func(lit string) string {
		switch lit {
		case "True":
			return "true"
		case "False":
			return "false"
		}
		return "null"
	})
	if !strings.Contains(fixed, `"`) {
		fixed = strings.ReplaceAll(fixed, "'", `"`)
	}
	if err := json.Unmarshal([]byte(fixed), &doc); err == nil {
		return doc, true
	}
	return nil, false
}

func resultItems(doc any) ([]any, bool) {
	switch v := doc.(type) {
	case []any:
		return v, true
	case map[string]any:
		if items, ok := v["results"].([]any); ok {
			return items, true
		}
		if _, ok := v["index"]; ok {
			return []any{v}, true
		}
	}
	return nil, false
}

func rankingFrom(item any, def float64) (Ranking, bool) {
	switch v := item.(type) {
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return Ranking{}, false
		}
		return Ranking{Index: int(v), Score: def}, true
	case map[string]any:
		idx, ok := indexValue(v["index"])
		if !ok {
			return Ranking{}, false
		}
		r := Ranking{
			Index:         idx,
			Score:         ParseScore(v["relevance_score"], def),
			Semantic:      ParseScore(v["semantic_relevance"], 0),
			Applicability: ParseScore(v["task_applicability"], 0),
			Timeliness:    ParseScore(v["timeliness"], 0),
		}
		r.Explanation, _ = v["explanation"].(string)
		return r, true
	}
	return Ranking{}, false
}

func indexValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil && i >= 0
	}
	return 0, false
}

// ParseScore reads a score that may be a number or a numeric string.
// Invalid values yield def; valid ones are clamped and rounded.
func ParseScore(v any, def float64) float64 {
	switch s := v.(type) {
	case float64:
		return NormalizeScore(s)
	case int:
		return NormalizeScore(float64(s))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return def
		}
		return NormalizeScore(f)
	}
	return def
}
