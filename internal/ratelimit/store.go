// Package ratelimit applies fixed-window counters keyed by client IP and
// persists them so limits survive a daemon restart.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"securenight/backend/snd/internal/fsatomic"
)

type state struct {
	Version int               `json:"version"`
	Buckets map[string]bucket `json:"buckets"`
}

type bucket struct {
	Hits        int    `json:"hits"`
	WindowStart string `json:"window_start"`
}

type Store struct {
	path        string
	mu          sync.Mutex
	st          state
	ops         int
	lastPersist time.Time
	now         func() time.Time
}

func New(path string) *Store {
	s := &Store{
		path: path,
		st:   state{Version: 1, Buckets: map[string]bucket{}},
		now:  time.Now,
	}
	var st state
	if ok, err := fsatomic.LoadJSON(path, &st); err == nil && ok && st.Buckets != nil {
		s.st = st
	}
	return s
}

// Allow records a hit against key under a fixed window of the given size.
// It returns whether the hit is allowed, how many hits remain in the window,
// and when the window resets.
func (s *Store) Allow(key string, limit int, window time.Duration) (bool, int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	b := s.st.Buckets[key]
	start, _ := time.Parse(time.RFC3339Nano, b.WindowStart)
	if start.IsZero() || now.Sub(start) >= window {
		start = now
		b.WindowStart = start.Format(time.RFC3339Nano)
		b.Hits = 0
	}
	resetAt := start.Add(window)
	if b.Hits >= limit {
		s.maybePersistLocked()
		return false, 0, resetAt
	}
	b.Hits++
	s.st.Buckets[key] = b
	s.maybePersistLocked()
	return true, limit - b.Hits, resetAt
}

// Flush forces a persist to disk.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	st := s.st
	if err := fsatomic.WithLock(s.path, func() error {
		return fsatomic.SaveJSON(context.Background(), s.path, st, 0o600)
	}); err != nil {
		return err
	}
	s.lastPersist = s.now()
	s.ops = 0
	return nil
}

// maybePersistLocked persists every ~2s or every 10 hits to bound IO.
func (s *Store) maybePersistLocked() {
	s.ops++
	if s.ops%10 == 0 || s.now().Sub(s.lastPersist) >= 2*time.Second {
		_ = s.persistLocked()
	}
}
