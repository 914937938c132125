package artifact

import (
	"context"
	"fmt"

	"snapsolve/internal/config"
)

// Open builds the store selected by cfg. It returns (nil, nil) for the "none" kind.
// Callers should Close the returned store when it implements io.Closer.
func Open(ctx context.Context, cfg config.ArtifactConfig) (Store, error) {
	var inner Store
	switch cfg.Kind {
	case config.ArtifactNone:
		return nil, nil
	case config.ArtifactMemory, "":
		// The memory store is already a map lookup.
		return NewMemoryStore(), nil
	case config.ArtifactS3:
		s3, err := NewS3Store(S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		inner = s3
	case config.ArtifactPostgres:
		pg, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return &closingStore{CachedStore: NewCachedStore(pg, cfg.CacheSize, cfg.CacheTTL), closer: pg}, nil
	default:
		return nil, fmt.Errorf("artifact: unknown store kind %q", cfg.Kind)
	}
	return NewCachedStore(inner, cfg.CacheSize, cfg.CacheTTL), nil
}

type closingStore struct {
	*CachedStore
	closer interface{ Close() error }
}

func (s *closingStore) Close() error { return s.closer.Close() }
