package bank

import "time"

// Statistics summarizes the bank contents.
type Statistics struct {
	TotalEntries    int            `json:"total_entries"`
	MaxEntries      int            `json:"max_entries"`
	OldestTimestamp *time.Time     `json:"oldest_timestamp"`
	NewestTimestamp *time.Time     `json:"newest_timestamp"`
	TagDistribution map[string]int `json:"tag_distribution"`
	HistoryCount    int            `json:"operation_history_count"`
}

// Statistics returns counts, the timestamp range and a tag histogram.
func (b *Bank) Statistics() Statistics {
	st := Statistics{
		TotalEntries:    len(b.entries),
		MaxEntries:      b.capacity,
		TagDistribution: map[string]int{},
		HistoryCount:    b.history.Len(),
	}
	for _, e := range b.entries {
		st.TagDistribution[e.Tag]++
		oldest, newest := e.Timestamp, e.Timestamp
		if st.OldestTimestamp == nil || oldest.Before(*st.OldestTimestamp) {
			st.OldestTimestamp = &oldest
		}
		if st.NewestTimestamp == nil || newest.After(*st.NewestTimestamp) {
			st.NewestTimestamp = &newest
		}
	}
	return st
}

// History returns up to limit of the most recent records, oldest first.
// limit <= 0 returns all of them.
func (b *Bank) History(limit int) []Record {
	return b.history.Last(limit)
}

// ClearHistory drops all history records.
func (b *Bank) ClearHistory() {
	b.history.Clear()
}
