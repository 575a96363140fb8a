// Package users persists account records in a versioned JSON file.
package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"securenight/backend/snd/internal/fsatomic"
)

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

type User struct {
	ID                string   `json:"id"`
	Username          string   `json:"username"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone,omitempty"`
	PasswordHash      string   `json:"password_hash"`
	Role              string   `json:"role"`
	Active            bool     `json:"active"`
	FingerprintHashes []string `json:"fingerprint_hashes"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
	LastLogin         string   `json:"last_login,omitempty"`
	LastLogout        string   `json:"last_logout,omitempty"`
	ResetToken        string   `json:"reset_token,omitempty"`
	ResetTokenExpiry  string   `json:"reset_token_expiry,omitempty"`
}

// IsAdmin reports whether the account carries the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type dbFile struct {
	Version int    `json:"version"`
	Users   []User `json:"users"`
}

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicateName  = errors.New("username already taken")
)

type Store struct {
	path string
	mu   sync.RWMutex
	byID map[string]User
}

func New(path string) (*Store, error) {
	s := &Store{path: path, byID: map[string]User{}}
	var f dbFile
	ok, err := fsatomic.LoadJSON(path, &f)
	if err != nil {
		return nil, fmt.Errorf("load users db: %w", err)
	}
	if ok && f.Version != 1 {
		return nil, fmt.Errorf("unsupported users db version: %d", f.Version)
	}
	for _, u := range f.Users {
		s.byID[u.ID] = u
	}
	return s, nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	return fsatomic.SaveJSON(ctx, s.path, dbFile{Version: 1, Users: s.snapshotLocked()}, 0o600)
}

func (s *Store) snapshotLocked() []User {
	list := make([]User, 0, len(s.byID))
	for _, u := range s.byID {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt < list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// List returns all users ordered by creation time.
func (s *Store) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Get(id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// FindByEmail matches case-insensitively.
func (s *Store) FindByEmail(email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *Store) FindByUsername(username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// FindByFingerprintHash returns the user owning the given registered hash.
func (s *Store) FindByFingerprintHash(hash string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		for _, h := range u.FingerprintHashes {
			if h == hash {
				return u, nil
			}
		}
	}
	return User{}, ErrNotFound
}

// Create adds a user, refusing duplicate email or username.
func (s *Store) Create(ctx context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, ErrDuplicateEmail
		}
		if existing.Username == u.Username {
			return User{}, ErrDuplicateName
		}
	}
	now := nowRFC3339()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.FingerprintHashes == nil {
		u.FingerprintHashes = []string{}
	}
	s.byID[u.ID] = u
	if err := s.persistLocked(ctx); err != nil {
		delete(s.byID, u.ID)
		return User{}, err
	}
	return u, nil
}

// Update applies mutate to the stored record and persists the result.
func (s *Store) Update(ctx context.Context, id string, mutate func(*User) error) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	prev := u
	if err := mutate(&u); err != nil {
		return User{}, err
	}
	u.ID = prev.ID
	u.CreatedAt = prev.CreatedAt
	u.UpdatedAt = nowRFC3339()
	s.byID[id] = u
	if err := s.persistLocked(ctx); err != nil {
		s.byID[id] = prev
		return User{}, err
	}
	return u, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	if err := s.persistLocked(ctx); err != nil {
		s.byID[id] = u
		return err
	}
	return nil
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }
