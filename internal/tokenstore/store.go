// Package tokenstore keeps registration tokens obtained out of band so
// uploads can reuse them. Lookups are asynchronous: callers get a
// promise and attach the token once it materializes.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/beaconlabs/beacon/pkg/promise"
)

// ErrTokenNotFound reports that no token has ever been stored for the
// requested sender.
var ErrTokenNotFound = errors.New("tokenstore: no token for sender")

var errEmptySender = errors.New("tokenstore: empty sender id")

type entry struct {
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a file-backed token store, one JSON document keyed by sender
// ID. The file is chmod 0600; tokens are secrets.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a store persisting at path. The file is created on first
// Save.
func New(path string) *Store {
	return &Store{path: path}
}

// ExistingToken resolves to the stored token for senderID, or rejects
// with ErrTokenNotFound when none has been saved. The read happens off
// the calling goroutine.
func (s *Store) ExistingToken(ctx context.Context, senderID string) *promise.Promise[string] {
	p := promise.New[string]()
	if senderID == "" {
		p.Reject(errEmptySender)
		return p
	}
	go func() {
		entries, err := s.load()
		if err != nil {
			p.Reject(err)
			return
		}
		e, ok := entries[senderID]
		if !ok || e.Token == "" {
			p.Reject(fmt.Errorf("%w: %s", ErrTokenNotFound, senderID))
			return
		}
		p.Fulfill(e.Token)
	}()
	return p
}

// Save stores a token for senderID, replacing any previous one. The
// write is atomic: a temp file is renamed over the store.
func (s *Store) Save(senderID, token string) error {
	if senderID == "" {
		return errEmptySender
	}
	if token == "" {
		return errors.New("tokenstore: empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return err
	}
	entries[senderID] = entry{Token: token, UpdatedAt: time.Now().UTC()}
	return s.writeLocked(entries)
}

// Delete removes the token for senderID. Deleting an absent sender is
// not an error.
func (s *Store) Delete(senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return err
	}
	if _, ok := entries[senderID]; !ok {
		return nil
	}
	delete(entries, senderID)
	return s.writeLocked(entries)
}

func (s *Store) load() (map[string]entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (map[string]entry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: read %s: %w", s.path, err)
	}
	entries := map[string]entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("tokenstore: parse %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *Store) writeLocked(entries map[string]entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("tokenstore: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: encode: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("tokenstore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("tokenstore: rename: %w", err)
	}
	return nil
}
