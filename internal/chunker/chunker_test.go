package chunker

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplit_Empty(t *testing.T) {
	if got := Split("x", "  ", DefaultOptions()); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSplit_Short(t *testing.T) {
	got := Split("y", "one line\ntwo line", DefaultOptions())
	if len(got) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(got))
	}
	if got[0].Field != "y" || got[0].StartLine != 1 || got[0].EndLine != 2 {
		t.Errorf("unexpected passage %+v", got[0])
	}
}

func TestSplit_MergedEntryText(t *testing.T) {
	part := strings.Repeat("filler words here. ", 20)
	text := "first half " + part + "\n---\nsecond half " + part
	got := Split("x", text, DefaultOptions())
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	if !strings.HasPrefix(got[0].Text, "first half") || !strings.HasPrefix(got[1].Text, "second half") {
		t.Errorf("unexpected split: %q / %q", got[0].Text[:12], got[1].Text[:12])
	}
}

func TestSplit_RespectsMaxSize(t *testing.T) {
	opts := Options{TargetSize: 200, MaxSize: 300}
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "This is a line of text that is about fifty characters long.")
	}
	got := Split("y", strings.Join(lines, "\n"), opts)
	if len(got) < 2 {
		t.Fatalf("expected at least 2 passages, got %d", len(got))
	}
	for _, p := range got {
		if len(p.Text) > opts.MaxSize {
			t.Errorf("passage exceeds max size: %d", len(p.Text))
		}
	}
}

func TestTerms(t *testing.T) {
	got := Terms("How to fix the Flaky test? Fix flaky TESTS, x 42")
	want := []string{"fix", "flaky", "test", "tests", "42"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := Terms("记忆 检索"); len(got) != 2 {
		t.Errorf("expected CJK terms kept, got %v", got)
	}
}
