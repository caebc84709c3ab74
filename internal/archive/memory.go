package archive

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process archive for tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// PutObject implements core.BlobStore.
func (s *MemoryStore) PutObject(_ context.Context, objPath string, _ string, data []byte) (string, error) {
	if objPath == "" {
		return "", fmt.Errorf("object path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[objPath] = buf
	return "mem://" + objPath, nil
}

// Object returns a stored object and whether it exists.
func (s *MemoryStore) Object(objPath string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objPath]
	return data, ok
}
