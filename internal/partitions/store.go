// Package partitions persists partition records in a versioned JSON file.
// The Files counter mirrors how many file records point at the partition and
// backs the deletion guards.
package partitions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"securenight/backend/snd/internal/fsatomic"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Formats lists the filesystem formats a partition can be created with.
var Formats = []string{"NTFS", "exFAT", "FAT32", "ext4"}

// ValidFormat reports whether f is one of Formats.
func ValidFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

type Partition struct {
	ID        string `json:"id"`
	DeviceID  string `json:"device_id"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	Format    string `json:"format"`
	Status    string `json:"status"`
	Files     int    `json:"files"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type dbFile struct {
	Version    int         `json:"version"`
	Partitions []Partition `json:"partitions"`
}

var ErrNotFound = errors.New("partition not found")

type Store struct {
	path string
	mu   sync.RWMutex
	byID map[string]Partition
}

func New(path string) (*Store, error) {
	s := &Store{path: path, byID: map[string]Partition{}}
	var f dbFile
	ok, err := fsatomic.LoadJSON(path, &f)
	if err != nil {
		return nil, fmt.Errorf("load partitions db: %w", err)
	}
	if ok && f.Version != 1 {
		return nil, fmt.Errorf("unsupported partitions db version: %d", f.Version)
	}
	for _, p := range f.Partitions {
		s.byID[p.ID] = p
	}
	return s, nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	return fsatomic.SaveJSON(ctx, s.path, dbFile{Version: 1, Partitions: s.snapshotLocked()}, 0o600)
}

func (s *Store) snapshotLocked() []Partition {
	list := make([]Partition, 0, len(s.byID))
	for _, p := range s.byID {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt < list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// List returns all partitions ordered by creation time.
func (s *Store) List() []Partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// ListByDevice returns the partitions allocated on the given device.
func (s *Store) ListByDevice(deviceID string) []Partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []Partition
	for _, p := range s.snapshotLocked() {
		if p.DeviceID == deviceID {
			list = append(list, p)
		}
	}
	return list
}

func (s *Store) Get(id string) (Partition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return Partition{}, ErrNotFound
	}
	return p, nil
}

func (s *Store) Create(ctx context.Context, p Partition) (Partition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339)
	p.CreatedAt = now
	p.UpdatedAt = now
	s.byID[p.ID] = p
	if err := s.persistLocked(ctx); err != nil {
		delete(s.byID, p.ID)
		return Partition{}, err
	}
	return p, nil
}

func (s *Store) Update(ctx context.Context, id string, mutate func(*Partition) error) (Partition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return Partition{}, ErrNotFound
	}
	prev := p
	if err := mutate(&p); err != nil {
		return Partition{}, err
	}
	// size, format and device placement are fixed at creation
	p.ID = prev.ID
	p.DeviceID = prev.DeviceID
	p.Size = prev.Size
	p.Format = prev.Format
	p.CreatedAt = prev.CreatedAt
	p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	s.byID[id] = p
	if err := s.persistLocked(ctx); err != nil {
		s.byID[id] = prev
		return Partition{}, err
	}
	return p, nil
}

// AdjustFiles changes the file counter by delta, clamping at zero.
func (s *Store) AdjustFiles(ctx context.Context, id string, delta int) error {
	_, err := s.Update(ctx, id, func(p *Partition) error {
		p.Files += delta
		if p.Files < 0 {
			p.Files = 0
		}
		return nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	if err := s.persistLocked(ctx); err != nil {
		s.byID[id] = p
		return err
	}
	return nil
}

// DeleteByDevice removes every partition on the device and returns how many
// were removed. Callers guard against non-empty partitions first.
func (s *Store) DeleteByDevice(ctx context.Context, deviceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := map[string]Partition{}
	for id, p := range s.byID {
		if p.DeviceID == deviceID {
			removed[id] = p
			delete(s.byID, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := s.persistLocked(ctx); err != nil {
		for id, p := range removed {
			s.byID[id] = p
		}
		return 0, err
	}
	return len(removed), nil
}
