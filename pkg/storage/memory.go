package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/JaimeStill/civic/pkg/lifecycle"
)

type memoryBlob struct {
	data        []byte
	contentType string
}

// Memory keeps blobs in process. Contents are lost on restart.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]memoryBlob)}
}

func (m *Memory) Start(lc *lifecycle.Coordinator) error {
	return nil
}

func (m *Memory) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = memoryBlob{data: data, contentType: contentType}
	return nil
}

func (m *Memory) Download(ctx context.Context, key string) (*Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		Body:        io.NopCloser(bytes.NewReader(b.data)),
		ContentType: b.contentType,
		Size:        int64(len(b.data)),
	}, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[key]
	return ok, nil
}
