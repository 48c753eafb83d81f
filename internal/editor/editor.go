// Package editor parses and formats memory edit commands.
//
// A command is one or more segments separated by ';'. Keywords are
// case-insensitive:
//
//	DELETE 1,3         indices separated by commas and/or spaces
//	ADD{free text}     "}}" inside the braces is a literal '}'
//	MERGE 0&2          one or more pairs; "0 & 2" is accepted
//	RELABEL 4 tag      or RELABEL 4 "tag with spaces"
//
// Parse is strict: it returns the whole delta or the first error.
package editor

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rcliao/remem/internal/model"
)

const (
	grammarDelete  = "DELETE <index>[,<index>...]"
	grammarAdd     = "ADD{<text>}"
	grammarMerge   = "MERGE <index>&<index>"
	grammarRelabel = `RELABEL <index> <tag>|"<tag>"`
	grammarKeyword = "one of DELETE, ADD, MERGE, RELABEL"
)

// SyntaxError locates the first offending token of a command.
type SyntaxError struct {
	Segment  int // 1-based
	Token    string
	Expected string
	Reason   string
}

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("segment %d: %s %q", e.Segment, e.Reason, e.Token)
	if e.Expected != "" {
		msg += ", expected " + e.Expected
	}
	return msg
}

// Unwrap lets callers match the error with errors.Is(err, model.ErrValidation).
func (e *SyntaxError) Unwrap() error { return model.ErrValidation }

type parser struct {
	delta   *model.Delta
	deletes map[int]bool
	merges  map[[2]int]bool
	relabel map[int]bool
}

// Parse turns a command into a delta. An empty command yields an empty delta.
func Parse(cmd string) (*model.Delta, error) {
	p := &parser{
		delta:   &model.Delta{},
		deletes: map[int]bool{},
		merges:  map[[2]int]bool{},
		relabel: map[int]bool{},
	}
	for i, seg := range splitSegments(cmd) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if err := p.segment(i+1, seg); err != nil {
			return nil, err
		}
	}
	return p.delta, nil
}

// Validate reports the error Parse would return, if any.
func Validate(cmd string) error {
	_, err := Parse(cmd)
	return err
}

func (p *parser) segment(n int, seg string) error {
	end := strings.IndexFunc(seg, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(seg)
	}
	keyword, rest := strings.ToUpper(seg[:end]), strings.TrimSpace(seg[end:])

	switch keyword {
	case "DELETE":
		return p.parseDelete(n, rest)
	case "ADD":
		return p.parseAdd(n, rest)
	case "MERGE":
		return p.parseMerge(n, rest)
	case "RELABEL":
		return p.parseRelabel(n, rest)
	}
	token := seg[:end]
	if token == "" {
		token = firstField(seg)
	}
	return &SyntaxError{Segment: n, Token: token, Expected: grammarKeyword, Reason: "unknown command"}
}

func (p *parser) parseDelete(n int, rest string) error {
	tokens := strings.FieldsFunc(rest, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	if len(tokens) == 0 {
		return &SyntaxError{Segment: n, Token: rest, Expected: grammarDelete, Reason: "missing indices"}
	}
	for _, tok := range tokens {
		idx, err := parseIndex(tok)
		if err != nil {
			return &SyntaxError{Segment: n, Token: tok, Expected: grammarDelete, Reason: "non-numeric index"}
		}
		if p.deletes[idx] {
			return &SyntaxError{Segment: n, Token: tok, Expected: "distinct indices", Reason: "duplicate delete index"}
		}
		p.deletes[idx] = true
		p.delta.Delete = append(p.delta.Delete, idx)
	}
	return nil
}

func (p *parser) parseAdd(n int, rest string) error {
	if !strings.HasPrefix(rest, "{") {
		return &SyntaxError{Segment: n, Token: rest, Expected: grammarAdd, Reason: "missing '{'"}
	}
	body := rest[1:]
	var b strings.Builder
	closed := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '}' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(body) && body[i+1] == '}' {
			b.WriteByte('}')
			i++
			continue
		}
		if trailing := strings.TrimSpace(body[i+1:]); trailing != "" {
			return &SyntaxError{Segment: n, Token: trailing, Expected: grammarAdd, Reason: "unexpected text after '}'"}
		}
		closed = true
		break
	}
	if !closed {
		return &SyntaxError{Segment: n, Token: rest, Expected: grammarAdd, Reason: "missing '}'"}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return &SyntaxError{Segment: n, Token: rest, Expected: grammarAdd, Reason: "empty ADD text"}
	}
	p.delta.Add = append(p.delta.Add, text)
	return nil
}

func (p *parser) parseMerge(n int, rest string) error {
	compact := collapseAmpersands(rest)
	tokens := strings.FieldsFunc(compact, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	if len(tokens) == 0 {
		return &SyntaxError{Segment: n, Token: rest, Expected: grammarMerge, Reason: "missing merge pair"}
	}
	for _, tok := range tokens {
		left, right, ok := strings.Cut(tok, "&")
		if !ok {
			return &SyntaxError{Segment: n, Token: tok, Expected: grammarMerge, Reason: "malformed merge pair"}
		}
		i, err := parseIndex(left)
		if err != nil {
			return &SyntaxError{Segment: n, Token: left, Expected: grammarMerge, Reason: "non-numeric index"}
		}
		j, err := parseIndex(right)
		if err != nil {
			return &SyntaxError{Segment: n, Token: right, Expected: grammarMerge, Reason: "non-numeric index"}
		}
		if i == j {
			return &SyntaxError{Segment: n, Token: tok, Expected: "two different indices", Reason: "cannot merge an entry with itself"}
		}
		key := [2]int{min(i, j), max(i, j)}
		if p.merges[key] {
			return &SyntaxError{Segment: n, Token: tok, Expected: "distinct merge pairs", Reason: "duplicate merge pair"}
		}
		p.merges[key] = true
		p.delta.Merge = append(p.delta.Merge, [2]int{i, j})
	}
	return nil
}

func (p *parser) parseRelabel(n int, rest string) error {
	idxTok := firstField(rest)
	if idxTok == "" {
		return &SyntaxError{Segment: n, Token: rest, Expected: grammarRelabel, Reason: "missing index"}
	}
	idx, err := parseIndex(idxTok)
	if err != nil {
		return &SyntaxError{Segment: n, Token: idxTok, Expected: grammarRelabel, Reason: "non-numeric index"}
	}
	raw := strings.TrimSpace(rest[len(idxTok):])
	tag := raw
	if strings.HasPrefix(raw, `"`) {
		if len(raw) < 2 || !strings.HasSuffix(raw, `"`) {
			return &SyntaxError{Segment: n, Token: raw, Expected: grammarRelabel, Reason: "unterminated quoted tag"}
		}
		tag = raw[1 : len(raw)-1]
	}
	if strings.TrimSpace(tag) == "" {
		return &SyntaxError{Segment: n, Token: raw, Expected: grammarRelabel, Reason: "empty tag"}
	}
	if p.relabel[idx] {
		return &SyntaxError{Segment: n, Token: idxTok, Expected: "distinct indices", Reason: "duplicate relabel index"}
	}
	p.relabel[idx] = true
	p.delta.Relabel = append(p.delta.Relabel, model.Relabel{Index: idx, Tag: strings.TrimSpace(tag)})
	return nil
}

// splitSegments splits on ';' outside ADD braces and double quotes.
func splitSegments(cmd string) []string {
	var segs []string
	var cur strings.Builder
	inBrace, inQuote := false, false
	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		switch {
		case inBrace:
			if c == '}' {
				if i+1 < len(cmd) && cmd[i+1] == '}' {
					cur.WriteString("}}")
					i++
					continue
				}
				inBrace = false
			}
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case c == '{':
			inBrace = true
		case c == '"':
			inQuote = true
		case c == ';':
			segs = append(segs, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	return append(segs, cur.String())
}

func collapseAmpersands(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '&' {
			b.WriteByte(s[i])
			continue
		}
		out := strings.TrimRightFunc(b.String(), unicode.IsSpace)
		b.Reset()
		b.WriteString(out)
		b.WriteByte('&')
		for i+1 < len(s) && unicode.IsSpace(rune(s[i+1])) {
			i++
		}
	}
	return b.String()
}

func parseIndex(tok string) (int, error) {
	for _, r := range tok {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q is not an index", model.ErrValue, tok)
		}
	}
	return strconv.Atoi(tok)
}

func firstField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
