// Package model defines the core memory data types.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entry is one experience record: the situation, what was done, and how it went.
// Two entries are the same entry when their IDs match.
type Entry struct {
	ID        string
	X         string
	Y         string
	Feedback  string
	Tag       string
	Timestamp time.Time
}

// TextFields are the free-text fields of an Entry.
var TextFields = []string{"x", "y", "feedback", "tag"}

// NewEntry creates an entry with a fresh ID and the current time.
func NewEntry(x, y, feedback, tag string) *Entry {
	now := time.Now().UTC()
	return &Entry{
		ID:        NewID(now),
		X:         validText(x),
		Y:         validText(y),
		Feedback:  validText(feedback),
		Tag:       validText(tag),
		Timestamp: now,
	}
}

// NewID returns a ULID for the given instant.
func NewID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// Equal reports whether e and other carry the same ID.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ID == other.ID
}

// Clone returns a copy of e.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// SetID replaces the entry ID. Empty IDs are rejected.
func (e *Entry) SetID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id must be non-empty", ErrValue)
	}
	e.ID = id
	return nil
}

// Set assigns a field by its serialized name, checking the value's type.
func (e *Entry) Set(field string, value any) error {
	switch field {
	case "id":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: id must be a string, got %T", ErrType, value)
		}
		return e.SetID(s)
	case "timestamp":
		ts, err := parseTimestamp(value)
		if err != nil {
			return err
		}
		e.Timestamp = ts
		return nil
	}

	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: %s must be a string, got %T", ErrType, field, value)
	}
	s = validText(s)
	switch field {
	case "x":
		e.X = s
	case "y":
		e.Y = s
	case "feedback":
		e.Feedback = s
	case "tag":
		e.Tag = s
	default:
		return fmt.Errorf("%w: unknown field %q", ErrValue, field)
	}
	return nil
}

// validText replaces invalid UTF-8 sequences with U+FFFD so the stored text
// reads back byte-identical.
func validText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// Text renders the entry for inclusion in a prompt.
func (e *Entry) Text() string {
	return fmt.Sprintf("[Task]: %s\n[Action]: %s\n[Feedback]: %s\n[Tag]: %s\n[Timestamp]: %s",
		e.X, e.Y, e.Feedback, e.Tag, e.Timestamp.Format(time.RFC3339))
}

// ToMap returns the canonical serialized form.
func (e *Entry) ToMap() map[string]any {
	return map[string]any{
		"id":        validText(e.ID),
		"x":         validText(e.X),
		"y":         validText(e.Y),
		"feedback":  validText(e.Feedback),
		"tag":       validText(e.Tag),
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// FromMap builds an entry from a serialized map. Legacy field names are
// migrated first; missing fields get defaults. A bad timestamp falls back to now.
func FromMap(raw map[string]any) (*Entry, error) {
	fields := Migrate(raw)
	now := time.Now().UTC()
	e := &Entry{Timestamp: now}

	for _, f := range TextFields {
		v, ok := fields[f]
		if !ok || v == nil {
			continue
		}
		if err := e.Set(f, v); err != nil {
			return nil, err
		}
	}

	if v, ok := fields["id"]; ok && v != nil {
		if err := e.Set("id", v); err != nil {
			return nil, err
		}
	} else {
		e.ID = NewID(now)
	}

	if v, ok := fields["timestamp"]; ok && v != nil {
		if err := e.Set("timestamp", v); err != nil {
			e.Timestamp = now
		}
	}
	return e, nil
}

// MarshalJSON encodes the canonical map form.
func (e *Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToMap())
}

// UnmarshalJSON decodes through FromMap so legacy documents are accepted.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	got, err := FromMap(raw)
	if err != nil {
		return err
	}
	*e = *got
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: unparsable timestamp %q", ErrValue, t)
	default:
		return time.Time{}, fmt.Errorf("%w: timestamp must be a string, got %T", ErrType, v)
	}
}
