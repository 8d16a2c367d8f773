package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onramp-ai/onramp/pkg/models"
)

// fakeInvoker fails for providers listed in fail and answers for the rest.
type fakeInvoker struct {
	fail    map[string]error
	answers map[string]string
	calls   []string
}

func (f *fakeInvoker) Invoke(_ context.Context, p models.ProviderProfile, _, _ string) (string, error) {
	f.calls = append(f.calls, p.Name)
	if err, ok := f.fail[p.Name]; ok {
		return "", &InvokeError{Provider: p.Name, Kind: ErrKindUnknown, Err: err}
	}
	if a, ok := f.answers[p.Name]; ok {
		return a, nil
	}
	return "answer from " + p.Name, nil
}

func testProfiles() []models.ProviderProfile {
	return []models.ProviderProfile{
		{Name: "gemini", APIKey: "k1", Model: "gemini-2.5-flash", CostPerMillion: 0, QualityScore: 8, SpeedScore: 9},
		{Name: "perplexity", APIKey: "k2", Model: "sonar-small", CostPerMillion: 0.2, QualityScore: 8, SpeedScore: 8},
		{Name: "openai", APIKey: "k3", Model: "gpt-4o-mini", CostPerMillion: 0.15, QualityScore: 9, SpeedScore: 9},
	}
}

func TestSimpleQueryRoutedToCheapest(t *testing.T) {
	inv := &fakeInvoker{}
	r := New(testProfiles(), inv, time.Second)

	res := r.Route(context.Background(), "What is Bitcoin?", "sys")
	if res.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", res.Status, res.Err)
	}
	if res.Provider != "gemini" {
		t.Errorf("expected cheapest provider gemini, got %s", res.Provider)
	}
}

func TestComplexQueryRoutedToHighestQuality(t *testing.T) {
	inv := &fakeInvoker{}
	r := New(testProfiles(), inv, time.Second)

	q := "Explain the differences between optimistic and zk rollups, including security and cost trade-offs?"
	res := r.Route(context.Background(), q, "sys")
	if res.Provider != "openai" {
		t.Errorf("expected highest-quality provider openai, got %s", res.Provider)
	}
}

func TestFallbackOnFailure(t *testing.T) {
	inv := &fakeInvoker{fail: map[string]error{"gemini": errors.New("boom")}}
	r := New(testProfiles(), inv, time.Second)

	res := r.Route(context.Background(), "What is Bitcoin?", "sys")
	if res.Status != models.StatusSuccessFallback {
		t.Fatalf("expected fallback success, got %s", res.Status)
	}
	if res.Provider == "gemini" {
		t.Error("failed provider must not be reported as used")
	}
	if got := r.Stats().FallbackCount; got != 1 {
		t.Errorf("expected fallback count 1, got %d", got)
	}
}

func TestCheapestOfflinePicksNextCheapest(t *testing.T) {
	profiles := testProfiles()
	profiles[0].APIKey = "" // cheapest provider offline
	inv := &fakeInvoker{}
	r := New(profiles, inv, time.Second)

	res := r.Route(context.Background(), "What is Bitcoin?", "sys")
	if res.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s", res.Status)
	}
	// Next cheapest available, not the priority-order fallback.
	if res.Provider != "openai" {
		t.Errorf("expected openai, got %s", res.Provider)
	}
	if got := r.Stats().UnavailableFallbacks; got != 0 {
		t.Errorf("expected no unavailable fallback, got %d", got)
	}
}

func TestUnavailablePreferredFallsBack(t *testing.T) {
	profiles := testProfiles()
	profiles[2].APIKey = "" // highest-quality provider offline
	inv := &fakeInvoker{}
	r := New(profiles, inv, time.Second)

	q := "Explain the differences between optimistic and zk rollups, including security and cost trade-offs?"
	res := r.Route(context.Background(), q, "sys")
	if res.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s", res.Status)
	}
	// First available in priority order.
	if res.Provider != "gemini" {
		t.Errorf("expected gemini, got %s", res.Provider)
	}
	if got := r.Stats().UnavailableFallbacks; got != 1 {
		t.Errorf("expected unavailable-fallback count 1, got %d", got)
	}
}

func TestAllProvidersFailDegraded(t *testing.T) {
	inv := &fakeInvoker{fail: map[string]error{
		"gemini":     errors.New("down"),
		"perplexity": errors.New("down"),
		"openai":     errors.New("last error"),
	}}
	r := New(testProfiles(), inv, time.Second)

	res := r.Route(context.Background(), "What is Bitcoin?", "sys")
	if res.Status != models.StatusError {
		t.Fatalf("expected error status, got %s", res.Status)
	}
	if res.Answer != degradedAnswer {
		t.Errorf("expected apologetic answer, got %q", res.Answer)
	}
	if res.Err == "" {
		t.Error("expected last error description to be attached")
	}
	if len(inv.calls) != 3 {
		t.Errorf("expected all 3 providers attempted once, got %v", inv.calls)
	}
}

func TestNoProvidersConfigured(t *testing.T) {
	r := New(nil, &fakeInvoker{}, time.Second)
	res := r.Route(context.Background(), "hello", "sys")
	if res.Status != models.StatusError {
		t.Fatalf("expected error status, got %s", res.Status)
	}
	if res.Answer != degradedAnswer {
		t.Errorf("expected apologetic answer, got %q", res.Answer)
	}
}

func TestCostEstimate(t *testing.T) {
	inv := &fakeInvoker{answers: map[string]string{"openai": "a detailed answer"}}
	profiles := []models.ProviderProfile{
		{Name: "openai", APIKey: "k", CostPerMillion: 0.15, QualityScore: 9},
	}
	r := New(profiles, inv, time.Second)

	res := r.Route(context.Background(), "What is Bitcoin?", "sys")
	wantTokens := (len("What is Bitcoin?") + len("sys") + len("a detailed answer")) / 4
	if res.Tokens != wantTokens {
		t.Errorf("expected %d tokens, got %d", wantTokens, res.Tokens)
	}
	if res.Cost <= 0 {
		t.Errorf("expected positive cost estimate, got %v", res.Cost)
	}
}
