package bank

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/rcliao/remem/internal/llm"
	"github.com/rcliao/remem/internal/model"
)

const rankingJSON = `{"results":[
	{"index":2,"relevance_score":0.91,"semantic_relevance":0.9,"task_applicability":0.8,"timeliness":0.7,"explanation":"same task"},
	{"index":0,"relevance_score":"0.333","explanation":"related"}
]}`

func TestRetrieve_EmptyBankSkipsRanker(t *testing.T) {
	m := llm.NewMockClient()
	got, err := New().Retrieve(context.Background(), &OracleRanker{Client: m}, "q", 5, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
	if len(m.Calls()) != 0 {
		t.Error("ranker should not be consulted for an empty bank")
	}
}

func TestRetrieve_NonPositiveK(t *testing.T) {
	b := newTestBank(t, 3)
	m := llm.NewMockClient().Enqueue(rankingJSON)
	for _, k := range []int{0, -1} {
		got, _ := b.Retrieve(context.Background(), &OracleRanker{Client: m}, "q", k, true)
		if len(got) != 0 {
			t.Errorf("k=%d: expected no results, got %d", k, len(got))
		}
	}
	if len(m.Calls()) != 0 {
		t.Error("ranker should not be consulted for k <= 0")
	}
}

func TestRetrieve_Oracle(t *testing.T) {
	b := newTestBank(t, 3)
	m := llm.NewMockClient().Enqueue(rankingJSON)
	got, err := b.Retrieve(context.Background(), &OracleRanker{Client: m}, "task 2", 10, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Index != 2 || got[0].Score != 0.91 || got[0].Explanation != "same task" {
		t.Errorf("unexpected first result %+v", got[0])
	}
	if got[1].Score != 0.33 {
		t.Errorf("expected string score parsed and rounded, got %v", got[1].Score)
	}
	if !strings.Contains(m.Calls()[0], "[2]") {
		t.Error("prompt should number entries from 0")
	}

	m.Enqueue(rankingJSON)
	quiet, _ := b.Retrieve(context.Background(), &OracleRanker{Client: m}, "task 2", 10, false)
	if quiet[0].Explanation != "" {
		t.Error("explanations should be dropped when not requested")
	}
}

func TestRetrieve_FallsBackOnGarbage(t *testing.T) {
	b := newTestBank(t, 4)
	m := llm.NewMockClient().Enqueue("I cannot rank these, sorry.")
	got, err := b.Retrieve(context.Background(), &OracleRanker{Client: m}, "t1", 2, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 fallback results, got %d", len(got))
	}
	if got[0].Index != 1 || !strings.HasPrefix(got[0].Explanation, "keyword overlap") {
		t.Errorf("expected keyword match first, got %+v", got[0])
	}
}

func TestRetrieve_FallsBackOnCapabilityError(t *testing.T) {
	b := newTestBank(t, 3)
	m := llm.NewMockClient()
	m.Err = errors.New("offline")
	got, err := b.Retrieve(context.Background(), &OracleRanker{Client: m}, "zzz", 3, true)
	if err != nil {
		t.Fatal(err)
	}
	// No overlap: newest first at the default score.
	if got[0].Index != 2 || got[0].Score != DefaultScore || got[0].Explanation != fallbackExplanation {
		t.Errorf("unexpected fallback result %+v", got[0])
	}
}

func TestRetrieve_Canceled(t *testing.T) {
	b := newTestBank(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Retrieve(ctx, &OracleRanker{Client: llm.NewMockClient()}, "q", 1, false); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseRanking_Wrappers(t *testing.T) {
	bare, err := ParseRanking(rankingJSON, DefaultScore)
	if err != nil {
		t.Fatal(err)
	}
	variants := map[string]string{
		"fenced":       "Here you go:\n```json\n" + rankingJSON + "\n```\nLet me know.",
		"prose":        "Sure! " + rankingJSON + " Hope that helps.",
		"single quote": strings.ReplaceAll(rankingJSON, `"`, `'`),
	}
	for name, text := range variants {
		t.Run(name, func(t *testing.T) {
			got, err := ParseRanking(text, DefaultScore)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, bare) {
				t.Errorf("expected %+v, got %+v", bare, got)
			}
		})
	}
}

func TestParseRanking_Degenerate(t *testing.T) {
	got, err := ParseRanking("1, 5, 2", 0.4)
	if err != nil {
		t.Fatal(err)
	}
	var idx []int
	for _, r := range got {
		idx = append(idx, r.Index)
		if r.Score != 0.4 {
			t.Errorf("expected default score, got %v", r.Score)
		}
	}
	if !reflect.DeepEqual(idx, []int{1, 5, 2}) {
		t.Errorf("expected [1 5 2], got %v", idx)
	}

	arr, err := ParseRanking(`[{"index":1,"relevance_score":0.7,},]`, DefaultScore)
	if err != nil || len(arr) != 1 || arr[0].Score != 0.7 {
		t.Errorf("expected trailing commas tolerated, got %+v %v", arr, err)
	}

	if _, err := ParseRanking("no idea", DefaultScore); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in   any
		def  float64
		want float64
	}{
		{0.333, 0.5, 0.33},
		{0.666, 0.5, 0.67},
		{"0.75", 0.5, 0.75},
		{"1", 0.5, 1},
		{1.7, 0.5, 1},
		{-0.2, 0.5, 0},
		{0.9999, 0.5, 1},
		{nil, 0.3, 0.3},
		{"", 0.4, 0.4},
		{"invalid", 0.5, 0.5},
		{[]any{1.0}, 0.5, 0.5},
		{map[string]any{}, 0.5, 0.5},
	}
	for _, tt := range tests {
		if got := ParseScore(tt.in, tt.def); got != tt.want {
			t.Errorf("ParseScore(%v, %v) = %v, want %v", tt.in, tt.def, got, tt.want)
		}
	}
}

func TestParseRanking_InvalidDefault(t *testing.T) {
	for _, def := range []float64{1.5, -0.5} {
		got, err := ParseRanking(`{"results":[{"index":0,"relevance_score":"bad"}]}`, def)
		if err != nil {
			t.Fatal(err)
		}
		if got[0].Score != DefaultScore {
			t.Errorf("default %v: expected %v, got %v", def, DefaultScore, got[0].Score)
		}
	}
}

func TestLexicalRanker(t *testing.T) {
	entries := []*model.Entry{
		model.NewEntry("deploy the service", "used blue green", "ok", "ops"),
		model.NewEntry("write unit tests", "table driven", "ok", "dev"),
	}
	got, err := LexicalRanker{}.Rank(context.Background(), entries, "how to write tests", 2)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Index != 1 || got[0].Score != 1.0 {
		t.Errorf("expected full overlap for entry 1, got %+v", got[0])
	}
	if got[1].Score != DefaultScore {
		t.Errorf("expected default score for no overlap, got %+v", got[1])
	}
}
