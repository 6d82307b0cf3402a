// Package storage holds the object store client and the upload
// pipeline that turns raw image bytes into a publicly fetchable URL.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ObjectStore is the binary side of the backend: opaque payloads at
// caller-chosen keys, each resolvable to a stable public URL. Paths are
// pre-randomized by the caller; no overwrite detection is assumed.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps objects in process memory. It backs tests and lets
// the server boot without object-storage credentials in development.
type MemoryStore struct {
	// BaseURL prefixes generated URLs.
	BaseURL string

	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		BaseURL: "https://storage.invalid",
		objects: map[string][]byte{},
	}
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.mu.Lock()
	s.objects[key] = buf
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PublicURL(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return "", errors.New("object not found: " + key)
	}
	return s.BaseURL + "/" + key, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Len reports how many objects are stored, for tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Object returns a stored payload, for tests.
func (s *MemoryStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[key]
	return b, ok
}
