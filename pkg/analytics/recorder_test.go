package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/onramp-ai/onramp/pkg/models"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "analytics.db")
	r, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func logN(t *testing.T, r *Recorder, n int, in models.Interaction) {
	t.Helper()
	for i := range n {
		in.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := r.Log(context.Background(), in); err != nil {
			t.Fatal(err)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"How do I stake my tokens?", "staking"},
		{"What is the best bridge to move funds?", "bridging"},
		{"I lost my seed phrase", "wallet"},
		{"Explain liquidity pools", "defi"},
		{"How do I mint an NFT?", "nft"},
		{"Should I buy now?", "trading"},
		{"Is this a phishing site?", "security"},
		{"Why are gwei fees so high?", "gas"},
		{"Tell me about blockchains", "general"},
	}
	for _, c := range cases {
		if got := Classify(c.query); got != c.want {
			t.Errorf("Classify(%q) = %q, want %q", c.query, got, c.want)
		}
	}
}

func TestLogAndMetrics(t *testing.T) {
	r := newTestRecorder(t)

	logN(t, r, 3, models.Interaction{
		Identity: "u1", Fingerprint: "fp1", Category: "staking", Language: "en",
		Provider: "gemini", Status: models.StatusSuccess, LatencyMs: 100, Tokens: 40, Cost: 0.01,
	})
	logN(t, r, 1, models.Interaction{
		Identity: "u2", Fingerprint: "fp2", Category: "defi", Language: "es",
		Provider: "openai", Status: models.StatusError, LatencyMs: 300,
	})

	m := r.Metrics()
	if m.TotalQueries != 4 {
		t.Fatalf("total = %d, want 4", m.TotalQueries)
	}
	if m.SuccessfulQueries != 3 || m.FailedQueries != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 3/1", m.SuccessfulQueries, m.FailedQueries)
	}
	if m.SuccessRate != 0.75 {
		t.Errorf("success rate = %v, want 0.75", m.SuccessRate)
	}
	if m.TopCategories["staking"] != 3 || m.TopCategories["defi"] != 1 {
		t.Errorf("categories = %v", m.TopCategories)
	}
	if m.Languages["en"] != 3 || m.Languages["es"] != 1 {
		t.Errorf("languages = %v", m.Languages)
	}
	if m.ActiveUsers != 2 {
		t.Errorf("active users = %d, want 2", m.ActiveUsers)
	}
	if m.AvgLatencyMs != 150 {
		t.Errorf("avg latency = %v, want 150", m.AvgLatencyMs)
	}
}

func TestTopQuestionsAndHitCount(t *testing.T) {
	r := newTestRecorder(t)

	logN(t, r, 3, models.Interaction{
		Identity: "u1", Fingerprint: "fp-pop", Category: "gas",
		Provider: "gemini", Status: models.StatusSuccess,
	})
	logN(t, r, 1, models.Interaction{
		Identity: "u1", Fingerprint: "fp-rare", Category: "nft",
		Provider: "gemini", Status: models.StatusSuccess,
	})

	top := r.TopQuestions(10)
	if len(top) != 2 {
		t.Fatalf("got %d top questions, want 2", len(top))
	}
	if top[0].Fingerprint != "fp-pop" || top[0].HitCount != 3 {
		t.Errorf("top entry = %+v", top[0])
	}
	if got := r.HitCount("fp-pop"); got != 3 {
		t.Errorf("HitCount = %d, want 3", got)
	}
	if got := r.HitCount("unknown"); got != 0 {
		t.Errorf("HitCount(unknown) = %d, want 0", got)
	}

	if limited := r.TopQuestions(1); len(limited) != 1 {
		t.Errorf("limit 1 returned %d entries", len(limited))
	}
}

func TestUserInsights(t *testing.T) {
	r := newTestRecorder(t)

	logN(t, r, 2, models.Interaction{
		Identity: "u1", Fingerprint: "fp1", Category: "general",
		Provider: "gemini", Status: models.StatusSuccess,
	})

	ins, ok := r.UserInsights("u1")
	if !ok {
		t.Fatal("expected insights for u1")
	}
	if ins.TotalQueries != 2 {
		t.Errorf("total queries = %d, want 2", ins.TotalQueries)
	}
	if ins.LastSeen.Before(ins.FirstSeen) {
		t.Error("last seen before first seen")
	}
	if _, ok := r.UserInsights("ghost"); ok {
		t.Error("expected no insights for unknown identity")
	}
}

func TestSummaryGrouping(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	logN(t, r, 2, models.Interaction{
		Identity: "u1", Fingerprint: "fp1", Category: "staking", Language: "en",
		Provider: "gemini", Status: models.StatusSuccess, Tokens: 50, Cost: 0.02,
	})
	logN(t, r, 1, models.Interaction{
		Identity: "u1", Fingerprint: "fp2", Category: "defi", Language: "en",
		Provider: "openai", Status: models.StatusSuccess, Tokens: 80, Cost: 0.05,
	})

	summaries, err := r.Summary(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	for _, s := range summaries {
		if s.Provider == "gemini" && (s.Count != 2 || s.Tokens != 100) {
			t.Errorf("gemini summary = %+v", s)
		}
	}
}

func TestDeleteIdentity(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	logN(t, r, 2, models.Interaction{
		Identity: "u1", Fingerprint: "fp1", Category: "general",
		Provider: "gemini", Status: models.StatusSuccess,
	})

	n, err := r.DeleteIdentity(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted %d rows, want 2", n)
	}
	if _, ok := r.UserInsights("u1"); ok {
		t.Error("insights survived deletion")
	}
	rows, err := r.Interactions(ctx, "u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d interactions after delete, want 0", len(rows))
	}
}
