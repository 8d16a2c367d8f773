package audit

import (
	"context"
	"path/filepath"
	"testing"
)

func setup(t *testing.T) (*Logger, context.Context) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit_test.db")
	l, err := New(dbPath, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l, context.Background()
}

func TestLogAndQuery(t *testing.T) {
	l, ctx := setup(t)

	if err := l.Log(ctx, Event{Identity: "id1", Kind: KindPIIRedacted, Detail: "email=1"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Log(ctx, Event{Identity: "id2", Kind: KindConsentGranted}); err != nil {
		t.Fatal(err)
	}

	events, err := l.Query(ctx, "id1", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event for id1, got %d", len(events))
	}
	if events[0].Kind != KindPIIRedacted || events[0].Detail != "email=1" {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestQueryByKind(t *testing.T) {
	l, ctx := setup(t)

	_ = l.Log(ctx, Event{Identity: "id1", Kind: KindPIIRedacted})
	_ = l.Log(ctx, Event{Identity: "id1", Kind: KindConsentGranted})

	events, err := l.Query(ctx, "", KindConsentGranted, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 consent event, got %d", len(events))
	}
}

func TestDeleteIdentity(t *testing.T) {
	l, ctx := setup(t)

	_ = l.Log(ctx, Event{Identity: "id1", Kind: KindPIIRedacted})
	_ = l.Log(ctx, Event{Identity: "id1", Kind: KindPIIRedacted})
	_ = l.Log(ctx, Event{Identity: "id2", Kind: KindPIIRedacted})

	n, err := l.DeleteIdentity(ctx, "id1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	events, err := l.Query(ctx, "", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Identity != "id2" {
		t.Errorf("expected only id2 events to remain, got %+v", events)
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	if err := l.Log(context.Background(), Event{Identity: "x", Kind: KindPIIRedacted}); err != nil {
		t.Errorf("nil logger should be a no-op, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil logger close should be a no-op, got %v", err)
	}
}
