package model

// Delta is a parsed multi-operation edit. Indices refer to bank positions
// at the time the delta was produced.
type Delta struct {
	Delete  []int     `json:"delete"`
	Add     []string  `json:"add"`
	Merge   [][2]int  `json:"merge"`
	Relabel []Relabel `json:"relabel"`
}

// Relabel assigns Tag to the entry at Index.
type Relabel struct {
	Index int    `json:"index"`
	Tag   string `json:"tag"`
}

// Empty reports whether the delta carries no operations.
func (d *Delta) Empty() bool {
	return d == nil || len(d.Delete)+len(d.Add)+len(d.Merge)+len(d.Relabel) == 0
}

// Count is the number of individual operations in the delta.
func (d *Delta) Count() int {
	if d == nil {
		return 0
	}
	return len(d.Delete) + len(d.Add) + len(d.Merge) + len(d.Relabel)
}

// RetrievalResult pairs an entry with its relevance score in [0,1].
type RetrievalResult struct {
	Entry         *Entry  `json:"entry"`
	Index         int     `json:"index"`
	Score         float64 `json:"score"`
	Semantic      float64 `json:"semantic_relevance"`
	Applicability float64 `json:"task_applicability"`
	Timeliness    float64 `json:"timeliness"`
	Explanation   string  `json:"explanation,omitempty"`
}
