package treedb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and as a fallback
// when no database path is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(_ context.Context, path string, out any) error {
	s.mu.RLock()
	raw, ok := s.nodes[path]
	s.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *MemoryStore) Set(_ context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	s.mu.Lock()
	s.nodes[path] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, path string, value any) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[path]; ok {
		return false, nil
	}
	s.nodes[path] = raw
	return true, nil
}

func (s *MemoryStore) Update(_ context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[path]; !ok {
		return ErrNotFound
	}
	s.nodes[path] = raw
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	delete(s.nodes, path)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Push(ctx context.Context, dir string, value any) (string, error) {
	key := uuid.New().String()
	if err := s.Set(ctx, dir+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *MemoryStore) Children(_ context.Context, dir string) (map[string]json.RawMessage, error) {
	prefix := strings.TrimSuffix(dir, "/") + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]json.RawMessage)
	for path, raw := range s.nodes {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		key := strings.TrimPrefix(path, prefix)
		if strings.Contains(key, "/") {
			continue
		}
		result[key] = raw
	}
	return result, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
