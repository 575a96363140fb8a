// Package files persists file metadata in a versioned JSON file and the
// (possibly encrypted) payloads as blobs under an uploads directory. Blob
// names are "<file id>.<ext>"; metadata records the plaintext size.
package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"securenight/backend/snd/internal/fsatomic"
)

type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PartitionID string `json:"partition_id"`
	OwnerID     string `json:"owner_id"`
	Size        int64  `json:"size"`
	FileType    string `json:"file_type"`
	Ext         string `json:"ext"`
	Encrypted   bool   `json:"encrypted"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type dbFile struct {
	Version int    `json:"version"`
	Files   []File `json:"files"`
}

var ErrNotFound = errors.New("file not found")

type Store struct {
	path       string
	uploadsDir string
	mu         sync.RWMutex
	byID       map[string]File
}

func New(path, uploadsDir string) (*Store, error) {
	if err := os.MkdirAll(uploadsDir, 0o750); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	s := &Store{path: path, uploadsDir: uploadsDir, byID: map[string]File{}}
	var f dbFile
	ok, err := fsatomic.LoadJSON(path, &f)
	if err != nil {
		return nil, fmt.Errorf("load files db: %w", err)
	}
	if ok && f.Version != 1 {
		return nil, fmt.Errorf("unsupported files db version: %d", f.Version)
	}
	for _, rec := range f.Files {
		s.byID[rec.ID] = rec
	}
	return s, nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	return fsatomic.SaveJSON(ctx, s.path, dbFile{Version: 1, Files: s.snapshotLocked()}, 0o600)
}

func (s *Store) snapshotLocked() []File {
	list := make([]File, 0, len(s.byID))
	for _, rec := range s.byID {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt // newest first
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// List returns all file records, newest first. ownerID narrows the result to
// one owner when non-empty.
func (s *Store) List(ownerID string) []File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.snapshotLocked()
	if ownerID == "" {
		return all
	}
	var list []File
	for _, rec := range all {
		if rec.OwnerID == ownerID {
			list = append(list, rec)
		}
	}
	return list
}

// CountByPartition returns how many file records point at the partition.
func (s *Store) CountByPartition(partitionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.byID {
		if rec.PartitionID == partitionID {
			n++
		}
	}
	return n
}

func (s *Store) Get(id string) (File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return File{}, ErrNotFound
	}
	return rec, nil
}

// Create stores the payload blob and the metadata record. The blob is
// removed again if metadata persistence fails.
func (s *Store) Create(ctx context.Context, rec File, payload []byte) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	blob := s.blobPathLocked(rec)
	if err := os.WriteFile(blob, payload, 0o600); err != nil {
		return File{}, fmt.Errorf("write blob: %w", err)
	}
	s.byID[rec.ID] = rec
	if err := s.persistLocked(ctx); err != nil {
		delete(s.byID, rec.ID)
		_ = os.Remove(blob)
		return File{}, err
	}
	return rec, nil
}

// Rename updates the display name; the blob path is keyed by ID and does not
// change.
func (s *Store) Rename(ctx context.Context, id, name string) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return File{}, ErrNotFound
	}
	prev := rec
	rec.Name = name
	rec.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	s.byID[id] = rec
	if err := s.persistLocked(ctx); err != nil {
		s.byID[id] = prev
		return File{}, err
	}
	return rec, nil
}

// ReadPayload returns the stored blob bytes (ciphertext for encrypted files).
func (s *Store) ReadPayload(id string) ([]byte, error) {
	s.mu.RLock()
	rec, ok := s.byID[id]
	blob := s.blobPathLocked(rec)
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	b, err := os.ReadFile(blob)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return b, nil
}

// Delete removes the record and its blob.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	if err := s.persistLocked(ctx); err != nil {
		s.byID[id] = rec
		return err
	}
	_ = os.Remove(s.blobPathLocked(rec))
	return nil
}

func (s *Store) blobPathLocked(rec File) string {
	name := rec.ID
	if rec.Ext != "" {
		name += "." + rec.Ext
	}
	return filepath.Join(s.uploadsDir, name)
}

// SplitName separates a filename into base name and lowercase extension
// without the dot.
func SplitName(filename string) (base, ext string) {
	e := filepath.Ext(filename)
	base = strings.TrimSuffix(filename, e)
	ext = strings.ToLower(strings.TrimPrefix(e, "."))
	return base, ext
}
