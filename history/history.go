// Package history keeps a bounded, in-memory record of recent submission
// outcomes, one per URL.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/use-agent/sitegrab/models"
)

const cleanupInterval = 5 * time.Minute

// record is the latest outcome for one URL plus the fingerprints of the last
// archive that was actually downloaded for it.
type record struct {
	entry       models.HistoryEntry
	fingerprint uint64
	layout      uint64
}

// Store is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	records    map[string]*record
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Store holding at most maxEntries URLs, each for at most ttl.
// A background goroutine evicts expired entries until Close is called.
// A ttl <= 0 keeps entries until they are displaced.
func New(maxEntries int, ttl time.Duration) *Store {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	s := &Store{
		records:    make(map[string]*record),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanupLoop()
	}
	return s
}

// Key returns the storage key for a URL.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Record stores e as the latest outcome for e.URL. At capacity, the oldest
// URL is evicted. A zero At is set to the current time.
func (s *Store) Record(e models.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.At.IsZero() {
		e.At = s.now()
	}
	key := Key(e.URL)

	r, ok := s.records[key]
	if !ok {
		if len(s.records) >= s.maxEntries {
			s.evictOldestLocked()
		}
		r = &record{}
		s.records[key] = r
	}
	r.entry = e
	if e.Fingerprint != 0 {
		r.fingerprint = e.Fingerprint
	}
	if e.Layout != 0 {
		r.layout = e.Layout
	}
}

// Last returns the latest unexpired outcome recorded for url.
func (s *Store) Last(url string) (models.HistoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[Key(url)]
	if !ok || s.expired(r) {
		return models.HistoryEntry{}, false
	}
	return r.entry, true
}

// Fingerprints returns the content and layout fingerprints of the last
// archive downloaded for url, or zeros when none is known. Failed
// submissions do not reset them.
func (s *Store) Fingerprints(url string) (content, layout uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[Key(url)]
	if !ok || s.expired(r) {
		return 0, 0
	}
	return r.fingerprint, r.layout
}

// List returns the unexpired outcomes, newest first.
func (s *Store) List() []models.HistoryEntry {
	s.mu.RLock()
	out := make([]models.HistoryEntry, 0, len(s.records))
	for _, r := range s.records {
		if !s.expired(r) {
			out = append(out, r.entry)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out
}

// Len returns the number of stored URLs, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close stops the cleanup goroutine.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) expired(r *record) bool {
	return s.ttl > 0 && s.now().Sub(r.entry.At) > s.ttl
}

func (s *Store) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, r := range s.records {
		if oldestKey == "" || r.entry.At.Before(oldest) {
			oldestKey, oldest = k, r.entry.At
		}
	}
	delete(s.records, oldestKey)
}

// evictExpired removes every expired record and returns how many it removed.
func (s *Store) evictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, r := range s.records {
		if s.expired(r) {
			delete(s.records, k)
			n++
		}
	}
	return n
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stop:
			return
		}
	}
}
