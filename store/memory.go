package store

import (
	"context"
	"sync"
)

type memoryBackend struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemory returns a Backend that only lives as long as the process.
func NewMemory() Backend {
	return &memoryBackend{
		values: make(map[string][]byte),
	}
}

func openMemory(_ context.Context, _ Options) (Backend, error) {
	return NewMemory(), nil
}

func (b *memoryBackend) Name() string {
	return DriverMemory
}

func (b *memoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	value, ok := b.values[key]
	if !ok {
		return nil, ErrNotExist
	}
	return append([]byte(nil), value...), nil
}

func (b *memoryBackend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = append([]byte(nil), value...)
	return nil
}

func (b *memoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}

func (b *memoryBackend) Close() error {
	return nil
}
