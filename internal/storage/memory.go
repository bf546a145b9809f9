package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// MemoryStorage keeps objects in memory. Used in tests and for throwaway
// local runs. Safe for concurrent use.
type MemoryStorage struct {
	baseURL string
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage(baseURL string) *MemoryStorage {
	if baseURL == "" {
		baseURL = "memory://"
	}
	return &MemoryStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]memoryObject),
	}
}

func (m *MemoryStorage) Save(ctx context.Context, path string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[path]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *MemoryStorage) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *MemoryStorage) GetURL(ctx context.Context, path string) (string, error) {
	return m.baseURL + "/" + path, nil
}

func (m *MemoryStorage) GetSignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	return m.GetURL(ctx, path)
}

func (m *MemoryStorage) GetSize(ctx context.Context, path string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[path]
	if !ok {
		return 0, ErrObjectNotFound
	}
	return int64(len(obj.data)), nil
}

// Len returns the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
