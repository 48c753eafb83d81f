package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewEntry(t *testing.T) {
	e := NewEntry("task", "answer", "success", "task")
	if e.ID == "" {
		t.Fatal("expected generated ID")
	}
	if e.Timestamp.IsZero() {
		t.Fatal("expected generated timestamp")
	}
	other := NewEntry("task", "answer", "success", "task")
	if e.Equal(other) {
		t.Error("entries with different IDs should not be equal")
	}
	c := e.Clone()
	c.X = "changed"
	if !e.Equal(c) {
		t.Error("clone should keep the ID")
	}
	if e.X != "task" {
		t.Error("clone mutation leaked into original")
	}
}

func TestInvalidUTF8Replaced(t *testing.T) {
	e := NewEntry("a \xff b", "y", "f", "t")
	if e.X != "a \uFFFD b" {
		t.Errorf("NewEntry X = %q", e.X)
	}
	if err := e.Set("y", "\xc3("); err != nil {
		t.Fatal(err)
	}
	if e.Y != "\uFFFD(" {
		t.Errorf("Set y = %q", e.Y)
	}
	e.Feedback = "ok \xfe"
	if got := e.ToMap()["feedback"]; got != "ok \uFFFD" {
		t.Errorf("ToMap feedback = %q", got)
	}
}

func TestSet_TypeAndValueErrors(t *testing.T) {
	e := NewEntry("", "", "", "")

	tests := []struct {
		name  string
		field string
		value any
		want  error
	}{
		{"x not string", "x", 42, ErrType},
		{"tag not string", "tag", []string{"a"}, ErrType},
		{"id empty", "id", "", ErrValue},
		{"id blank", "id", "   ", ErrValue},
		{"id not string", "id", 7, ErrType},
		{"bad timestamp", "timestamp", "yesterday", ErrValue},
		{"unknown field", "nope", "v", ErrValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Set(tt.field, tt.value)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected error to wrap ErrValidation")
			}
		})
	}

	if err := e.Set("feedback", "ok"); err != nil {
		t.Fatalf("set feedback: %v", err)
	}
	if e.Feedback != "ok" {
		t.Errorf("expected feedback 'ok', got %q", e.Feedback)
	}
}

func TestMapRoundTrip(t *testing.T) {
	e := NewEntry("situation\nline two", "response", "fine", "tag with space")
	got, err := FromMap(e.ToMap())
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if got.ID != e.ID || got.X != e.X || got.Y != e.Y || got.Feedback != e.Feedback || got.Tag != e.Tag {
		t.Errorf("round trip mismatch: %+v vs %+v", got, e)
	}
	if !got.Timestamp.Equal(e.Timestamp) {
		t.Errorf("timestamp mismatch: %v vs %v", got.Timestamp, e.Timestamp)
	}
}

func TestFromMap_Legacy(t *testing.T) {
	got, err := FromMap(map[string]any{
		"cue":       "old task",
		"response":  "old answer",
		"timestamp": "2024-03-01T10:00:00.123456",
	})
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if got.X != "old task" || got.Y != "old answer" {
		t.Errorf("legacy fields not migrated: %+v", got)
	}
	if got.ID == "" {
		t.Error("expected synthesized ID")
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)
	if !got.Timestamp.Equal(want) {
		t.Errorf("expected %v, got %v", want, got.Timestamp)
	}
}

func TestFromMap_CurrentNameWins(t *testing.T) {
	got, err := FromMap(map[string]any{"x": "new", "cue": "old"})
	if err != nil {
		t.Fatal(err)
	}
	if got.X != "new" {
		t.Errorf("expected current field to win, got %q", got.X)
	}
}

func TestFromMap_BadTimestampFallsBack(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	got, err := FromMap(map[string]any{"x": "a", "timestamp": "not a time"})
	if err != nil {
		t.Fatalf("bad timestamp should not fail: %v", err)
	}
	if got.Timestamp.Before(before) {
		t.Errorf("expected fallback to now, got %v", got.Timestamp)
	}
}

func TestFromMap_WrongType(t *testing.T) {
	_, err := FromMap(map[string]any{"x": 3.5})
	if !errors.Is(err, ErrType) {
		t.Fatalf("expected ErrType, got %v", err)
	}
}

func TestJSON(t *testing.T) {
	e := NewEntry("a", "b", "c", "d")
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var got Entry
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Equal(e) || got.Tag != "d" {
		t.Errorf("json round trip mismatch: %+v", got)
	}
}

func TestDeltaCount(t *testing.T) {
	var nilDelta *Delta
	if !nilDelta.Empty() {
		t.Error("nil delta should be empty")
	}
	d := &Delta{Delete: []int{1}, Add: []string{"x"}, Merge: [][2]int{{0, 2}}}
	if d.Count() != 3 || d.Empty() {
		t.Errorf("unexpected count %d", d.Count())
	}
}
