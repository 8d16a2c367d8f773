package llm

import (
	"strings"
	"testing"
)

func TestSimpleQueryScoresLow(t *testing.T) {
	score := ComplexityScore("What is Bitcoin?")
	if score > 4 {
		t.Errorf("expected low-band score, got %d", score)
	}
	if bandFor(score) != bandLow {
		t.Errorf("expected low band for score %d", score)
	}
}

func TestComplexQueryScoresHigh(t *testing.T) {
	q := "Explain the differences between optimistic and zk rollups, including security and cost trade-offs?"
	score := ComplexityScore(q)
	if score < 8 {
		t.Errorf("expected high-band score, got %d", score)
	}
	if bandFor(score) != bandHigh {
		t.Errorf("expected high band for score %d", score)
	}
}

func TestScoreMonotonicInTriggerTerms(t *testing.T) {
	// Hold length constant by swapping filler for trigger terms.
	base := "tell me about pots tokens and coins ok"
	withTerm := "tell me about defi tokens and coins ok"
	if len(base) != len(withTerm) {
		t.Fatalf("fixture lengths differ: %d vs %d", len(base), len(withTerm))
	}
	if ComplexityScore(withTerm) < ComplexityScore(base) {
		t.Errorf("score decreased when a technical term was added")
	}

	prev := ComplexityScore("staking")
	for i := 2; i <= 5; i++ {
		q := strings.Repeat("defi ", i)
		got := ComplexityScore(q)
		if got < prev {
			t.Errorf("score not monotonic: %d terms scored %d, previous %d", i, got, prev)
		}
		prev = got
	}
}

func TestMultipleQuestionMarks(t *testing.T) {
	one := ComplexityScore("is it safe?")
	two := ComplexityScore("is it ok?? hm?")
	if two <= one {
		t.Errorf("expected multiple question marks to raise score: %d vs %d", two, one)
	}
}

func TestScoreClamped(t *testing.T) {
	q := strings.Repeat("explain how and why defi smart contract liquidity pool validator consensus ", 5)
	if got := ComplexityScore(q); got != maxComplexity {
		t.Errorf("expected clamp at %d, got %d", maxComplexity, got)
	}
}
