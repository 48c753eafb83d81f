package editor

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/rcliao/remem/internal/model"
)

// Format renders a delta as a canonical command. Repeated delete indices,
// merge pairs and relabel targets are dropped (first occurrence wins), as are
// operations Parse would reject.
func Format(d *model.Delta) string {
	return strings.Join(operations(d), "; ")
}

func operations(d *model.Delta) []string {
	if d == nil {
		return nil
	}
	var ops []string

	var idx []string
	seen := map[int]bool{}
	for _, i := range d.Delete {
		if i < 0 || seen[i] {
			continue
		}
		seen[i] = true
		idx = append(idx, strconv.Itoa(i))
	}
	if len(idx) > 0 {
		ops = append(ops, "DELETE "+strings.Join(idx, ","))
	}

	for _, text := range d.Add {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		ops = append(ops, "ADD{"+strings.ReplaceAll(text, "}", "}}")+"}")
	}

	pairs := map[[2]int]bool{}
	for _, m := range d.Merge {
		key := [2]int{min(m[0], m[1]), max(m[0], m[1])}
		if m[0] == m[1] || m[0] < 0 || m[1] < 0 || pairs[key] {
			continue
		}
		pairs[key] = true
		ops = append(ops, "MERGE "+strconv.Itoa(m[0])+"&"+strconv.Itoa(m[1]))
	}

	relabeled := map[int]bool{}
	for _, r := range d.Relabel {
		tag := strings.TrimSpace(r.Tag)
		if tag == "" || r.Index < 0 || relabeled[r.Index] {
			continue
		}
		relabeled[r.Index] = true
		if strings.ContainsFunc(tag, func(c rune) bool { return unicode.IsSpace(c) || c == ';' }) {
			tag = `"` + tag + `"`
		}
		ops = append(ops, "RELABEL "+strconv.Itoa(r.Index)+" "+tag)
	}
	return ops
}

// Summary describes a command without applying it.
type Summary struct {
	TotalOperations int      `json:"total_operations"`
	DeleteCount     int      `json:"delete_count"`
	AddCount        int      `json:"add_count"`
	MergeCount      int      `json:"merge_count"`
	RelabelCount    int      `json:"relabel_count"`
	Valid           bool     `json:"is_valid"`
	Error           string   `json:"error,omitempty"`
	Operations      []string `json:"operations"`
}

// Summarize parses cmd and counts its operations by kind.
func Summarize(cmd string) Summary {
	d, err := Parse(cmd)
	if err != nil {
		return Summary{Error: err.Error(), Operations: []string{}}
	}
	return SummarizeDelta(d)
}

// SummarizeDelta counts the operations of an already parsed delta without
// validating it again.
func SummarizeDelta(d *model.Delta) Summary {
	ops := operations(d)
	if ops == nil {
		ops = []string{}
	}
	s := Summary{
		TotalOperations: d.Count(),
		Valid:           true,
		Operations:      ops,
	}
	if d != nil {
		s.DeleteCount = len(d.Delete)
		s.AddCount = len(d.Add)
		s.MergeCount = len(d.Merge)
		s.RelabelCount = len(d.Relabel)
	}
	return s
}
