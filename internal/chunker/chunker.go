// Package chunker splits entry text into passages and extracts match terms
// for lexical ranking.
package chunker

import (
	"strings"
	"unicode"
)

const (
	DefaultTargetSize = 400
	DefaultMaxSize    = 600
)

// Options configures passage splitting.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default splitting options.
func DefaultOptions() Options {
	return Options{TargetSize: DefaultTargetSize, MaxSize: DefaultMaxSize}
}

// Passage is a span of one entry field.
type Passage struct {
	Field     string
	Text      string
	StartLine int
	EndLine   int
}

// Split breaks text into passages. Text no longer than MaxSize is one passage.
func Split(field, text string, opts Options) []Passage {
	if opts.TargetSize == 0 {
		opts = DefaultOptions()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= opts.MaxSize {
		return []Passage{{Field: field, Text: text, StartLine: 1, EndLine: strings.Count(text, "\n") + 1}}
	}

	var out []Passage
	for _, p := range pack(paragraphs(text), opts) {
		p.Field = field
		out = append(out, p)
	}
	return out
}

// paragraphs splits on blank lines, headings and merge separators.
func paragraphs(text string) []Passage {
	lines := strings.Split(text, "\n")
	var out []Passage
	var cur []string
	start := 1

	flush := func(end int) {
		t := strings.TrimSpace(strings.Join(cur, "\n"))
		if t != "" {
			out = append(out, Passage{Text: t, StartLine: start, EndLine: end})
		}
		cur = nil
		start = end + 1
	}

	for i, line := range lines {
		n := i + 1
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "---":
			flush(n - 1)
			start = n + 1
			continue
		case trimmed == "":
			flush(n)
			continue
		case strings.HasPrefix(trimmed, "#") && len(cur) > 0:
			flush(n - 1)
		}
		cur = append(cur, line)
	}
	flush(len(lines))
	return out
}

// pack joins small paragraphs up to TargetSize and line-splits oversized ones.
func pack(paras []Passage, opts Options) []Passage {
	var out []Passage
	var acc Passage

	emit := func() {
		if acc.Text == "" {
			return
		}
		if len(acc.Text) > opts.MaxSize {
			out = append(out, splitLines(acc, opts)...)
		} else {
			out = append(out, acc)
		}
		acc = Passage{}
	}

	for _, p := range paras {
		if acc.Text == "" {
			acc = p
			continue
		}
		if len(acc.Text)+2+len(p.Text) <= opts.TargetSize {
			acc.Text += "\n\n" + p.Text
			acc.EndLine = p.EndLine
			continue
		}
		emit()
		acc = p
	}
	emit()
	return out
}

func splitLines(p Passage, opts Options) []Passage {
	lines := strings.Split(p.Text, "\n")
	var out []Passage
	var cur []string
	curStart, curLen := p.StartLine, 0

	for i, line := range lines {
		if curLen+len(line) > opts.TargetSize && len(cur) > 0 {
			if t := strings.TrimSpace(strings.Join(cur, "\n")); t != "" {
				out = append(out, Passage{Text: t, StartLine: curStart, EndLine: p.StartLine + i - 1})
			}
			cur, curStart, curLen = nil, p.StartLine+i, 0
		}
		cur = append(cur, line)
		curLen += len(line) + 1
	}
	if t := strings.TrimSpace(strings.Join(cur, "\n")); t != "" {
		out = append(out, Passage{Text: t, StartLine: curStart, EndLine: p.StartLine + len(lines) - 1})
	}
	return out
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "how": true, "in": true, "is": true, "it": true,
	"of": true, "on": true, "or": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "what": true, "with": true,
}

// Terms returns the distinct lowercase words of text, without stopwords,
// in first-seen order.
func Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := map[string]bool{}
	var out []string
	for _, w := range words {
		if stopwords[w] || seen[w] {
			continue
		}
		if len([]rune(w)) < 2 && !isCJK(w) {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func isCJK(w string) bool {
	for _, r := range w {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
