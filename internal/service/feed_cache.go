package service

import (
	"context"
	"sync"
	"time"
)

// FeedCacheStore caches rendered announcement feeds. Entries are grouped
// under a namespace so a single write can drop every audience's view at once.
type FeedCacheStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, namespace string) error
}

type NoopFeedCacheStore struct{}

func NewNoopFeedCacheStore() *NoopFeedCacheStore {
	return &NoopFeedCacheStore{}
}

func (s *NoopFeedCacheStore) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *NoopFeedCacheStore) Set(context.Context, string, string, []byte, time.Duration) error {
	return nil
}

func (s *NoopFeedCacheStore) Invalidate(context.Context, string) error {
	return nil
}

type feedCacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// InMemoryFeedCacheStore is the single-instance store. Expired entries are
// dropped lazily on read.
type InMemoryFeedCacheStore struct {
	mu    sync.RWMutex
	store map[string]map[string]feedCacheEntry
}

func NewInMemoryFeedCacheStore() *InMemoryFeedCacheStore {
	return &InMemoryFeedCacheStore{store: make(map[string]map[string]feedCacheEntry)}
}

func (s *InMemoryFeedCacheStore) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	now := time.Now().UTC()
	s.mu.RLock()
	entry, ok := s.store[namespace][key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		if ns, ok := s.store[namespace]; ok {
			delete(ns, key)
			if len(ns) == 0 {
				delete(s.store, namespace)
			}
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), entry.payload...), true, nil
}

func (s *InMemoryFeedCacheStore) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.store[namespace]
	if !ok {
		ns = make(map[string]feedCacheEntry)
		s.store[namespace] = ns
	}
	ns[key] = feedCacheEntry{
		payload:   append([]byte(nil), value...),
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *InMemoryFeedCacheStore) Invalidate(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, namespace)
	return nil
}
