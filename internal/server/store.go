package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"datalogger-plots/internal/parser"
)

// ErrDatasetNotFound is returned for unknown or expired dataset ids.
var ErrDatasetNotFound = errors.New("dataset not found")

// Entry is an uploaded dataset.
type Entry struct {
	ID       string
	Name     string
	Dataset  *parser.Dataset
	Uploaded time.Time

	lastUsed time.Time
}

// Store keeps uploaded datasets in memory. It holds at most max entries and
// forgets those unused for longer than ttl.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Entry
	max     int
	ttl     time.Duration
	now     func() time.Time
}

func NewStore(max int, ttl time.Duration) *Store {
	if max < 1 {
		max = 1
	}
	return &Store{
		entries: make(map[string]*Entry),
		max:     max,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores ds under a fresh id, evicting the least recently used entry
// when full.
func (s *Store) Put(name string, ds *parser.Dataset) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)
	for len(s.entries) >= s.max {
		s.evictOldestLocked()
	}

	e := &Entry{
		ID:       uuid.NewString(),
		Name:     name,
		Dataset:  ds,
		Uploaded: now,
		lastUsed: now,
	}
	s.entries[e.ID] = e
	return e
}

// Get returns the entry for id and marks it used.
func (s *Store) Get(id string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrDatasetNotFound
	}
	e.lastUsed = now
	return e, nil
}

// Delete drops id. Unknown ids are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expireLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, e := range s.entries {
		if now.Sub(e.lastUsed) > s.ttl {
			delete(s.entries, id)
		}
	}
}

func (s *Store) evictOldestLocked() {
	var oldest *Entry
	for _, e := range s.entries {
		if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
			oldest = e
		}
	}
	if oldest != nil {
		delete(s.entries, oldest.ID)
	}
}
