package artifact

import (
	"context"
	"errors"
	"testing"
	"time"

	"snapsolve/internal/config"
	"snapsolve/internal/tester"
)

type countingStore struct {
	*MemoryStore
	gets  int
	lists int
}

func (s *countingStore) Get(ctx context.Context, sessionID, path string) ([]byte, error) {
	s.gets++
	return s.MemoryStore.Get(ctx, sessionID, path)
}

func (s *countingStore) List(ctx context.Context, sessionID string) ([]string, error) {
	s.lists++
	return s.MemoryStore.List(ctx, sessionID)
}

func TestMemoryStore_PutGetList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tester.NoErr(t, s.Put(ctx, "s1", "/problem.json", []byte(`{"title":"x"}`)))
	tester.NoErr(t, s.Put(ctx, "s1", "screenshots/0000.png", []byte{1, 2, 3}))
	tester.NoErr(t, s.Put(ctx, "s2", "problem.json", []byte(`{}`)))

	got, err := s.Get(ctx, "s1", "problem.json")
	tester.NoErr(t, err)
	tester.Eq(t, string(got), `{"title":"x"}`)

	paths, err := s.List(ctx, "s1")
	tester.NoErr(t, err)
	tester.Eq(t, paths, []string{"problem.json", "screenshots/0000.png"})

	_, err = s.Get(ctx, "s1", "missing.json")
	tester.ErrIs(t, err, ErrNotFound)
}

func TestMemoryStore_RejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tester.True(t, s.Put(ctx, "", "a.json", nil) != nil, "empty session id must fail")
	tester.True(t, s.Put(ctx, "s1", "", nil) != nil, "empty path must fail")
	tester.True(t, s.Put(ctx, "s1", "../escape", nil) != nil, "dot-dot path must fail")
}

func TestCachedStore_ServesRepeatReadsFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	s := NewCachedStore(inner, 8, time.Minute)
	tester.NoErr(t, s.Put(ctx, "s1", "solution.json", []byte("v1")))

	for i := 0; i < 3; i++ {
		b, err := s.Get(ctx, "s1", "solution.json")
		tester.NoErr(t, err)
		tester.Eq(t, string(b), "v1")
	}
	tester.Eq(t, inner.gets, 1)

	_, err := s.List(ctx, "s1")
	tester.NoErr(t, err)
	_, err = s.List(ctx, "s1")
	tester.NoErr(t, err)
	tester.Eq(t, inner.lists, 1)
}

func TestCachedStore_PutInvalidates(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	s := NewCachedStore(inner, 8, time.Minute)
	tester.NoErr(t, s.Put(ctx, "s1", "solution.json", []byte("v1")))
	_, err := s.Get(ctx, "s1", "solution.json")
	tester.NoErr(t, err)
	paths, err := s.List(ctx, "s1")
	tester.NoErr(t, err)
	tester.Eq(t, len(paths), 1)

	tester.NoErr(t, s.Put(ctx, "s1", "solution.json", []byte("v2")))
	tester.NoErr(t, s.Put(ctx, "s1", "debug/0001.json", []byte("d1")))

	b, err := s.Get(ctx, "s1", "solution.json")
	tester.NoErr(t, err)
	tester.Eq(t, string(b), "v2")
	paths, err = s.List(ctx, "s1")
	tester.NoErr(t, err)
	tester.Eq(t, paths, []string{"debug/0001.json", "solution.json"})
}

func TestCachedStore_MissIsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	s := NewCachedStore(inner, 8, time.Minute)
	_, err := s.Get(ctx, "s1", "nope.json")
	tester.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound")
	_, _ = s.Get(ctx, "s1", "nope.json")
	tester.Eq(t, inner.gets, 2)
}

func TestOpen_Kinds(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.ArtifactConfig{Kind: config.ArtifactNone})
	tester.NoErr(t, err)
	tester.True(t, s == nil, "none kind must return a nil store")

	s, err = Open(ctx, config.ArtifactConfig{Kind: config.ArtifactMemory})
	tester.NoErr(t, err)
	_, ok := s.(*MemoryStore)
	tester.True(t, ok, "memory kind must return a MemoryStore")

	_, err = Open(ctx, config.ArtifactConfig{Kind: config.ArtifactS3, Endpoint: "localhost:9000"})
	tester.True(t, err != nil, "s3 without credentials must fail")
}
