// Package devices persists storage device records in a versioned JSON file.
package devices

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

type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Capacity  string `json:"capacity"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type dbFile struct {
	Version int      `json:"version"`
	Devices []Device `json:"devices"`
}

var ErrNotFound = errors.New("device not found")

type Store struct {
	path string
	mu   sync.RWMutex
	byID map[string]Device
}

func New(path string) (*Store, error) {
	s := &Store{path: path, byID: map[string]Device{}}
	var f dbFile
	ok, err := fsatomic.LoadJSON(path, &f)
	if err != nil {
		return nil, fmt.Errorf("load devices db: %w", err)
	}
	if ok && f.Version != 1 {
		return nil, fmt.Errorf("unsupported devices db version: %d", f.Version)
	}
	for _, d := range f.Devices {
		s.byID[d.ID] = d
	}
	return s, nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	return fsatomic.SaveJSON(ctx, s.path, dbFile{Version: 1, Devices: s.snapshotLocked()}, 0o600)
}

func (s *Store) snapshotLocked() []Device {
	list := make([]Device, 0, len(s.byID))
	for _, d := range s.byID {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt < list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// List returns all devices ordered by creation time.
func (s *Store) List() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Get(id string) (Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	if !ok {
		return Device{}, ErrNotFound
	}
	return d, nil
}

func (s *Store) Create(ctx context.Context, d Device) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339)
	d.CreatedAt = now
	d.UpdatedAt = now
	s.byID[d.ID] = d
	if err := s.persistLocked(ctx); err != nil {
		delete(s.byID, d.ID)
		return Device{}, err
	}
	return d, nil
}

func (s *Store) Update(ctx context.Context, id string, mutate func(*Device) error) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[id]
	if !ok {
		return Device{}, ErrNotFound
	}
	prev := d
	if err := mutate(&d); err != nil {
		return Device{}, err
	}
	d.ID = prev.ID
	d.CreatedAt = prev.CreatedAt
	d.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	s.byID[id] = d
	if err := s.persistLocked(ctx); err != nil {
		s.byID[id] = prev
		return Device{}, err
	}
	return d, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	if err := s.persistLocked(ctx); err != nil {
		s.byID[id] = d
		return err
	}
	return nil
}
