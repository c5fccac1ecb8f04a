package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/parcelpal/internal/client"
)

// TokenStore persists the token pair between runs
type TokenStore interface {
	Load() (client.TokenPair, bool, error)
	Save(tokens client.TokenPair) error
	Clear() error
}

// MemoryStore process-local store
type MemoryStore struct {
	mu     sync.Mutex
	tokens client.TokenPair
}

// Load stored pair
func (s *MemoryStore) Load() (client.TokenPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, s.tokens.AccessToken != "", nil
}

// Save replaces the pair
func (s *MemoryStore) Save(tokens client.TokenPair) error {
	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
	return nil
}

// Clear forgets the pair
func (s *MemoryStore) Clear() error {
	return s.Save(client.TokenPair{})
}

// FileStore JSON file with 0600 permissions
type FileStore struct {
	Path string
	mu   sync.Mutex
}

// Load reads the file; a missing file is an empty session
func (s *FileStore) Load() (client.TokenPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return client.TokenPair{}, false, nil
	}
	if err != nil {
		return client.TokenPair{}, false, err
	}
	var tokens client.TokenPair
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return client.TokenPair{}, false, err
	}
	return tokens, tokens.AccessToken != "", nil
}

// Save writes the pair
func (s *FileStore) Save(tokens client.TokenPair) error {
	if tokens.AccessToken == "" {
		return s.Clear()
	}
	raw, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.Path, raw, 0o600)
}

// Clear removes the file
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
