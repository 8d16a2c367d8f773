package privacy

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/onramp-ai/onramp/pkg/audit"
)

func newFilter(t *testing.T) (*Filter, *audit.Logger) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit_test.db")
	auditor, err := audit.New(dbPath, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { auditor.Close() })
	return New([]string{"EU"}, 24*time.Hour, auditor), auditor
}

func TestProcessConsentRequired(t *testing.T) {
	f, _ := newFilter(t)
	ctx := context.Background()

	res := f.Process(ctx, "id1", "what is staking?", "EU")
	if !res.ConsentRequired {
		t.Fatal("expected consent required for EU identity without grant")
	}

	f.GrantConsent(ctx, "id1", []string{"analytics"})
	res = f.Process(ctx, "id1", "what is staking?", "EU")
	if res.ConsentRequired {
		t.Fatal("expected no consent requirement after grant")
	}
}

func TestProcessNonRegulatedRegion(t *testing.T) {
	f, _ := newFilter(t)

	res := f.Process(context.Background(), "id1", "what is staking?", "US")
	if res.ConsentRequired {
		t.Fatal("US region should not require consent")
	}
}

func TestProcessRedactsAndAudits(t *testing.T) {
	f, auditor := newFilter(t)
	ctx := context.Background()

	res := f.Process(ctx, "id1", "email me at bob@example.com", "US")
	if !res.PIIFound {
		t.Fatal("expected PII to be found")
	}
	if res.CleanedText != "email me at [email redacted]" {
		t.Errorf("unexpected cleaned text: %q", res.CleanedText)
	}

	events, err := auditor.Query(ctx, "id1", audit.KindPIIRedacted, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	if events[0].Detail != "email=1" {
		t.Errorf("unexpected audit detail: %q", events[0].Detail)
	}
}

func TestProcessAuditSurvivesCanceledContext(t *testing.T) {
	f, auditor := newFilter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.Process(ctx, "id1", "email me at bob@example.com", "US")
	if !res.PIIFound {
		t.Fatal("expected PII to be found")
	}

	events, err := auditor.Query(context.Background(), "id1", audit.KindPIIRedacted, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
}

func TestConsentExpiry(t *testing.T) {
	f, _ := newFilter(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := base
	f.now = func() time.Time { return now }

	f.GrantConsent(ctx, "id1", []string{"analytics"})
	if !f.HasConsent("id1") {
		t.Fatal("expected consent to be valid")
	}

	now = base.Add(25 * time.Hour)
	if f.HasConsent("id1") {
		t.Fatal("expected consent to be expired")
	}
	if _, ok := f.Export("id1"); ok {
		t.Fatal("expired consent must be equivalent to no record")
	}
}

func TestRevokeConsent(t *testing.T) {
	f, _ := newFilter(t)
	ctx := context.Background()

	f.GrantConsent(ctx, "id1", []string{"analytics"})
	if !f.RevokeConsent(ctx, "id1") {
		t.Fatal("expected revoke to report existing consent")
	}
	if f.RevokeConsent(ctx, "id1") {
		t.Fatal("expected second revoke to report no consent")
	}
	if f.HasConsent("id1") {
		t.Fatal("expected no consent after revoke")
	}
}

func TestHashIdentityStable(t *testing.T) {
	a := HashIdentity("user-123")
	b := HashIdentity("user-123")
	if a != b {
		t.Errorf("hash not stable: %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Errorf("expected 16-char identity, got %d", len(a))
	}
	if a == "user-123" {
		t.Error("identity must not equal the raw identifier")
	}
}
