package memory

import (
	"context"
	"sync"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/repository"
)

// Storage keeps local storage in process memory.
type Storage struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewStorage returns an empty in-memory local storage.
func NewStorage() *Storage {
	return &Storage{data: make(map[string]string)}
}

func (s *Storage) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Storage) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *Storage) Ping(context.Context) error { return nil }

// Len returns the number of stored keys.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Blocked is a storage that fails every access, like a browser with
// storage disabled. When Panic is set it panics instead of returning errors.
type Blocked struct {
	Panic bool
}

func (b Blocked) fail() error {
	if b.Panic {
		panic("storage access denied")
	}
	return domain.ErrStorageDisabled
}

func (b Blocked) Get(context.Context, string) (string, error) { return "", b.fail() }
func (b Blocked) Set(context.Context, string, string) error   { return b.fail() }
func (b Blocked) Remove(context.Context, ...string) error     { return b.fail() }
func (b Blocked) Ping(context.Context) error                  { return b.fail() }

var (
	_ repository.LocalStorage = (*Storage)(nil)
	_ repository.LocalStorage = Blocked{}
)
