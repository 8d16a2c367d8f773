package retrieval

import (
	"context"
	"testing"
)

func TestStaticSearchReturnsRelevantTopics(t *testing.T) {
	s := NewStatic()

	sources, err := s.Search(context.Background(), "How does staking work and what are validator rewards?", 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) == 0 {
		t.Fatal("expected at least one source")
	}
	if sources[0].Metadata["topic"] != "staking" {
		t.Errorf("top source topic = %q, want staking", sources[0].Metadata["topic"])
	}
}

func TestStaticSearchLimit(t *testing.T) {
	s := NewStatic()

	sources, err := s.Search(context.Background(), "tokens fees network blockchain price wallet", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) > 2 {
		t.Errorf("got %d sources, want at most 2", len(sources))
	}
}

func TestStaticSearchNoMatch(t *testing.T) {
	s := NewStatic()

	sources, err := s.Search(context.Background(), "weather forecast tomorrow", 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 0 {
		t.Errorf("got %d sources for unrelated query, want 0", len(sources))
	}
}

func TestQueryWordsDropsShortTerms(t *testing.T) {
	words := queryWords("How do I estimate the gas fee?")
	if words["how"] || words["the"] || words["fee"] {
		t.Errorf("short terms kept: %v", words)
	}
	if !words["estimate"] {
		t.Errorf("long term dropped: %v", words)
	}
}
