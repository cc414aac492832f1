// Package cache keeps fetched responses keyed by a fingerprint of their fetch identity.
//
// The whole cache lives in memory. It is read from its Backend once, on Load
// or first use, and written back in full after every Put.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Header is one stored header field.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Entry is a captured response.
type Entry struct {
	StatusLine string    `json:"status_line"`
	StatusCode int       `json:"status"`
	Headers    []Header  `json:"headers"`
	Body       string    `json:"body"`
	StoredAt   time.Time `json:"stored_at"`
}

// Backend reads and writes the complete cache record.
type Backend interface {
	ReadAll() (map[string]Entry, error)
	WriteAll(entries map[string]Entry) error
	Close() error
}

// Fingerprint returns the lookup key for a fetch identity ("host:port/path").
func Fingerprint(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}

// Store is an in-memory fingerprint -> Entry map persisted through a Backend.
type Store struct {
	mu      sync.Mutex
	backend Backend
	entries map[string]Entry
	loaded  bool
}

// NewStore creates a store over backend. Nothing is read until Load or first use.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Load reads the backend. Calls after the first successful one do nothing.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}
	entries, err := s.backend.ReadAll()
	if err != nil {
		return fmt.Errorf("load cache: %w", err)
	}
	if entries == nil {
		entries = make(map[string]Entry)
	}
	s.entries = entries
	s.loaded = true
	return nil
}

// Get returns the entry stored for identity.
func (s *Store) Get(identity string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return Entry{}, false, err
	}
	ent, ok := s.entries[Fingerprint(identity)]
	return ent, ok, nil
}

// Put stores ent under identity and flushes the whole store.
func (s *Store) Put(identity string, ent Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	s.entries[Fingerprint(identity)] = ent
	return s.flushLocked()
}

// Flush writes every entry to the backend.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if err := s.backend.WriteAll(s.entries); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	return nil
}

// Len returns the number of cached responses.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return 0, err
	}
	return len(s.entries), nil
}

// Clear drops every entry and flushes the empty store.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry)
	s.loaded = true
	return s.flushLocked()
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
