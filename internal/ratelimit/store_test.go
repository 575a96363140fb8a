package ratelimit

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFixedWindow(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "ratelimit.json"))
	start := time.Now()
	s.now = func() time.Time { return start }

	for i := 0; i < 3; i++ {
		ok, remaining, _ := s.Allow("1.2.3.4", 3, time.Minute)
		if !ok {
			t.Fatalf("hit %d unexpectedly denied", i+1)
		}
		if remaining != 2-i {
			t.Fatalf("hit %d: remaining = %d", i+1, remaining)
		}
	}
	ok, _, resetAt := s.Allow("1.2.3.4", 3, time.Minute)
	if ok {
		t.Fatal("4th hit should be denied")
	}
	if !resetAt.Equal(start.UTC().Add(time.Minute)) {
		t.Fatalf("resetAt = %v", resetAt)
	}

	// other keys are independent
	if ok, _, _ := s.Allow("5.6.7.8", 3, time.Minute); !ok {
		t.Fatal("other key should be allowed")
	}

	// window expiry resets the counter
	s.now = func() time.Time { return start.Add(61 * time.Second) }
	if ok, _, _ := s.Allow("1.2.3.4", 3, time.Minute); !ok {
		t.Fatal("hit after window expiry should be allowed")
	}
}

func TestPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimit.json")
	s := New(path)
	for i := 0; i < 3; i++ {
		s.Allow("1.2.3.4", 3, time.Hour)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	s2 := New(path)
	if ok, _, _ := s2.Allow("1.2.3.4", 3, time.Hour); ok {
		t.Fatal("limit should survive reopen")
	}
}
