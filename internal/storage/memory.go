package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/folio/internal/apperr"
)

type memBlob struct {
	data      []byte
	updatedAt time.Time
}

// Memory implements Provider in process memory. It is used by tests and by
// the "memory" storage backend.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
}

var _ Provider = (*Memory)(nil)

// NewMemory returns an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]memBlob)}
}

func (m *Memory) List(_ context.Context, prefix string) ([]BlobInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []BlobInfo
	for k, b := range m.blobs {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		out = append(out, BlobInfo{
			Key:       k,
			Size:      int64(len(b.data)),
			Checksum:  Checksum(b.data),
			UpdatedAt: b.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("storage: read %s: %w", key, apperr.ErrNotFound)
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

func (m *Memory) Write(_ context.Context, key string, content []byte) error {
	if key == "" {
		return fmt.Errorf("storage: empty key")
	}
	data := make([]byte, len(content))
	copy(data, content)
	m.mu.Lock()
	m.blobs[key] = memBlob{data: data, updatedAt: time.Now()}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return fmt.Errorf("storage: delete %s: %w", key, apperr.ErrNotFound)
	}
	delete(m.blobs, key)
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[key]
	return ok, nil
}
