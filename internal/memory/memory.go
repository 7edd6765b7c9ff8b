// Package memory keeps a bounded per-requester history of recent
// prospecting requests with sliding-window eviction.
package memory

import (
	"sync"
	"time"
)

const defaultWindow = 20

// Entry is one remembered request.
type Entry struct {
	Text string
	At   time.Time
}

// Store holds up to window entries per requester; adding beyond the window
// evicts the oldest. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	window int
	byID   map[string][]Entry
}

// New creates a Store with the given window size.
func New(window int) *Store {
	if window <= 0 {
		window = defaultWindow
	}
	return &Store{window: window, byID: make(map[string][]Entry)}
}

// Add records a request for a requester.
func (s *Store) Add(requesterID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.byID[requesterID], Entry{Text: text, At: time.Now().UTC()})
	if len(entries) > s.window {
		entries = entries[len(entries)-s.window:]
	}
	s.byID[requesterID] = entries
}

// Recent returns the requester's history, oldest first. The slice is a copy.
func (s *Store) Recent(requesterID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.byID[requesterID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
