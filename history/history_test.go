package history

import (
	"testing"
	"time"

	"github.com/use-agent/sitegrab/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(max int, ttl time.Duration) (*Store, *clock) {
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	s := New(max, ttl)
	s.now = c.now
	return s, c
}

func TestStore_RecordAndLast(t *testing.T) {
	s, c := newTestStore(10, time.Hour)
	defer s.Close()

	if _, ok := s.Last("https://example.com"); ok {
		t.Fatal("empty store should have no entry")
	}

	s.Record(models.HistoryEntry{URL: "https://example.com", Filename: "examplecom.zip", Size: 42, Fingerprint: 0xABCD, Layout: 0x1234})
	c.t = c.t.Add(time.Minute)
	s.Record(models.HistoryEntry{URL: "https://example.com", Kind: models.KindServer, Message: "blocked"})

	last, ok := s.Last("https://example.com")
	if !ok {
		t.Fatal("expected an entry")
	}
	if last.Succeeded() || last.Message != "blocked" {
		t.Errorf("last = %+v, want the failure", last)
	}
	if !last.At.Equal(c.t) {
		t.Errorf("At = %v, want %v", last.At, c.t)
	}
	if fp, layout := s.Fingerprints("https://example.com"); fp != 0xABCD || layout != 0x1234 {
		t.Errorf("fingerprints = %x, %x, want the last archive's", fp, layout)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want one record per URL", s.Len())
	}
}

func TestStore_EvictsOldest(t *testing.T) {
	s, c := newTestStore(2, 0)
	defer s.Close()

	for _, u := range []string{"https://a.test", "https://b.test", "https://c.test"} {
		s.Record(models.HistoryEntry{URL: u})
		c.t = c.t.Add(time.Second)
	}

	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if _, ok := s.Last("https://a.test"); ok {
		t.Error("oldest entry should have been evicted")
	}
	for _, u := range []string{"https://b.test", "https://c.test"} {
		if _, ok := s.Last(u); !ok {
			t.Errorf("%s should still be present", u)
		}
	}
}

func TestStore_TTL(t *testing.T) {
	s, c := newTestStore(10, time.Hour)
	defer s.Close()

	s.Record(models.HistoryEntry{URL: "https://old.test", Fingerprint: 1})
	c.t = c.t.Add(50 * time.Minute)
	s.Record(models.HistoryEntry{URL: "https://new.test"})
	c.t = c.t.Add(20 * time.Minute)

	if _, ok := s.Last("https://old.test"); ok {
		t.Error("expired entry should not be returned")
	}
	if fp, _ := s.Fingerprints("https://old.test"); fp != 0 {
		t.Error("expired fingerprint should not be returned")
	}
	if got := s.List(); len(got) != 1 || got[0].URL != "https://new.test" {
		t.Errorf("List() = %+v", got)
	}

	if n := s.evictExpired(); n != 1 {
		t.Errorf("evictExpired() = %d, want 1", n)
	}
	if s.Len() != 1 {
		t.Errorf("len after cleanup = %d, want 1", s.Len())
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	s, c := newTestStore(10, 0)
	defer s.Close()

	for _, u := range []string{"https://1.test", "https://2.test", "https://3.test"} {
		s.Record(models.HistoryEntry{URL: u})
		c.t = c.t.Add(time.Second)
	}

	got := s.List()
	want := []string{"https://3.test", "https://2.test", "https://1.test"}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d entries", len(got))
	}
	for i := range want {
		if got[i].URL != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, got[i].URL, want[i])
		}
	}
}

func TestKey(t *testing.T) {
	a := Key("https://example.com")
	if a != Key("https://example.com") {
		t.Error("Key should be deterministic")
	}
	if a == Key("https://example.org") {
		t.Error("different URLs should have different keys")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}
