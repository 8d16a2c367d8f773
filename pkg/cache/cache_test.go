package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	c, err := New(dbPath, ttl)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFingerprint(t *testing.T) {
	f1 := Fingerprint("What is staking?", "en")
	f2 := Fingerprint("  what is staking?  ", "en")
	f3 := Fingerprint("What is staking?", "es")

	if f1 != f2 {
		t.Error("normalized queries should share a fingerprint")
	}
	if f1 == f3 {
		t.Error("different language should produce a different fingerprint")
	}
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour)
	fp := Fingerprint("what is gas", "en")

	if err := c.Put(fp, "en", Entry{Answer: "Gas is the fee paid per transaction.", Provider: "gemini"}); err != nil {
		t.Fatal(err)
	}

	e, ok := c.Get(fp, "en")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if e.Provider != "gemini" || e.Answer == "" {
		t.Errorf("unexpected entry: %+v", e)
	}

	// Miss for a different language
	if _, ok := c.Get(fp, "es"); ok {
		t.Error("expected cache miss for different language")
	}
}

func TestTTLExpiration(t *testing.T) {
	c := newTestCache(t, 1*time.Millisecond)
	fp := "testfp"

	if err := c.Put(fp, "en", Entry{Answer: "stale"}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, ok := c.Get(fp, "en"); ok {
		t.Error("expected cache miss after TTL expiration")
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_ = c.Put("f1", "en", Entry{Answer: "a"})
	c.Get("f1", "en") // hit
	c.Get("f2", "en") // miss

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", stats.HitRate)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_ = c.Put("f1", "en", Entry{Answer: "a"})
	_ = c.Put("f2", "en", Entry{Answer: "b"})

	if err := c.Clear(false); err != nil {
		t.Fatal(err)
	}

	stats, _ := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("expected 0 entries after clear, got %d", stats.Entries)
	}
}
