package artifact

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedStore fronts a Store with an expiring LRU for Get and List.
// Writes go straight through and invalidate the affected entries.
type CachedStore struct {
	inner Store
	blobs *expirable.LRU[string, []byte]
	lists *expirable.LRU[string, []string]
}

func NewCachedStore(inner Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = 256
	}
	return &CachedStore{
		inner: inner,
		blobs: expirable.NewLRU[string, []byte](size, nil, ttl),
		lists: expirable.NewLRU[string, []string](size, nil, ttl),
	}
}

func (s *CachedStore) Put(ctx context.Context, sessionID, path string, content []byte) error {
	sessionID, path, err := normalizeKey(sessionID, path)
	if err != nil {
		return err
	}
	if err := s.inner.Put(ctx, sessionID, path, content); err != nil {
		return err
	}
	s.blobs.Remove(objectKey(sessionID, path))
	s.lists.Remove(sessionID)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, sessionID, path string) ([]byte, error) {
	sessionID, path, err := normalizeKey(sessionID, path)
	if err != nil {
		return nil, err
	}
	key := objectKey(sessionID, path)
	if b, ok := s.blobs.Get(key); ok {
		return append([]byte(nil), b...), nil
	}
	b, err := s.inner.Get(ctx, sessionID, path)
	if err != nil {
		return nil, err
	}
	s.blobs.Add(key, append([]byte(nil), b...))
	return b, nil
}

func (s *CachedStore) List(ctx context.Context, sessionID string) ([]string, error) {
	if paths, ok := s.lists.Get(sessionID); ok {
		return append([]string(nil), paths...), nil
	}
	paths, err := s.inner.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.lists.Add(sessionID, append([]string(nil), paths...))
	return paths, nil
}

// GetURL is not cached: presigned links expire on their own schedule.
func (s *CachedStore) GetURL(ctx context.Context, sessionID, path string) (string, error) {
	return s.inner.GetURL(ctx, sessionID, path)
}
