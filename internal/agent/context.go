package agent

import (
	"strings"
	"unicode/utf8"

	"github.com/rcliao/remem/internal/model"
)

const (
	// DefaultContextBudget is the retrieved-memory budget in tokens.
	DefaultContextBudget = 2000

	charsPerToken  = 4
	minExcerpt     = 100
	entrySeparator = "\n"
)

// PackedContext is retrieved memory rendered for a prompt.
type PackedContext struct {
	Budget   int    `json:"budget"`
	Used     int    `json:"used"`
	Included int    `json:"included"`
	Excerpt  bool   `json:"excerpt,omitempty"`
	Text     string `json:"text"`
}

// PackContext renders results, best first, into a token budget (roughly
// four characters per token). The first result that does not fit is cut
// to an excerpt if at least minExcerpt characters remain.
func PackContext(results []model.RetrievalResult, budget int) PackedContext {
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	charBudget := budget * charsPerToken
	out := PackedContext{Budget: budget}

	var parts []string
	used := 0
	for _, r := range results {
		if r.Entry == nil {
			continue
		}
		text := r.Entry.Text()
		if used+len(text) <= charBudget {
			parts = append(parts, text)
			used += len(text)
			continue
		}
		if remaining := charBudget - used; remaining >= minExcerpt {
			excerpt := truncate(text, remaining) + "..."
			parts = append(parts, excerpt)
			used += len(excerpt)
			out.Excerpt = true
		}
		break
	}

	out.Included = len(parts)
	out.Text = strings.Join(parts, entrySeparator)
	out.Used = used / charsPerToken
	return out
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
