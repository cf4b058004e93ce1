// Package memory contains an in-memory archive sink for tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Sink stores archived documents in memory for inspection.
type Sink struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New returns a memory Sink.
func New() *Sink {
	return &Sink{objects: make(map[string][]byte)}
}

// Put records the document under path and returns a mem:// URI.
func (s *Sink) Put(_ context.Context, path string, _ string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = append([]byte(nil), data...)
	return fmt.Sprintf("mem://%s", path), nil
}

// Object returns the stored bytes for path.
func (s *Sink) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path]
	return data, ok
}

// Len reports how many objects are stored.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
