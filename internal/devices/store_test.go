package devices

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestStoreLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	s, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	d, err := s.Create(ctx, Device{ID: "d-1", Name: "Main SSD", Type: "SSD", Capacity: "500 GB", Status: StatusActive})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.CreatedAt == "" || d.UpdatedAt == "" {
		t.Fatal("timestamps not set")
	}

	d, err = s.Update(ctx, "d-1", func(d *Device) error {
		d.Status = StatusInactive
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if d.Status != StatusInactive {
		t.Fatalf("status = %q", d.Status)
	}

	// survives a reopen
	s2, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := len(s2.List()); got != 1 {
		t.Fatalf("after reload: %d devices, want 1", got)
	}

	if err := s2.Delete(ctx, "d-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s2.Get("d-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
