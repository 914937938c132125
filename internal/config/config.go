package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultListenAddr      = ":8081"
	DefaultProviderTimeout = 90 * time.Second
	DefaultLanguage        = "python"
)

type Config struct {
	Server   ServerConfig
	Pipeline PipelineConfig
	Artifact ArtifactConfig
}

type ServerConfig struct {
	Addr string
}

type PipelineConfig struct {
	// ProviderTimeout bounds every provider call.
	ProviderTimeout time.Duration
	Language        string
}

// ArtifactKind selects the audit store backend.
type ArtifactKind string

const (
	ArtifactNone     ArtifactKind = "none"
	ArtifactMemory   ArtifactKind = "memory"
	ArtifactS3       ArtifactKind = "s3"
	ArtifactPostgres ArtifactKind = "postgres"
)

type ArtifactConfig struct {
	Kind ArtifactKind

	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	PostgresDSN string

	CacheSize int
	CacheTTL  time.Duration
}

// Load builds the typed config from src. Unknown or unparsable values fall back to defaults,
// except for values that would silently change behavior (timeouts, store kinds), which fail.
func Load(src Source) (*Config, error) {
	timeout, err := durationOr(src, "PROVIDER_TIMEOUT", DefaultProviderTimeout)
	if err != nil {
		return nil, err
	}
	art, err := loadArtifactConfig(src)
	if err != nil {
		return nil, err
	}
	return &Config{
		Server: ServerConfig{Addr: normalizeAddr(firstNonEmpty(Get(src, "LISTEN_ADDR"), Get(src, "PORT"), DefaultListenAddr))},
		Pipeline: PipelineConfig{
			ProviderTimeout: timeout,
			Language:        strings.ToLower(firstNonEmpty(Get(src, "SOLUTION_LANGUAGE"), DefaultLanguage)),
		},
		Artifact: art,
	}, nil
}

func loadArtifactConfig(src Source) (ArtifactConfig, error) {
	kind := ArtifactKind(strings.ToLower(firstNonEmpty(Get(src, "ARTIFACT_STORE"), string(ArtifactMemory))))
	switch kind {
	case ArtifactNone, ArtifactMemory, ArtifactS3, ArtifactPostgres:
	default:
		return ArtifactConfig{}, fmt.Errorf("config: ARTIFACT_STORE %q is not one of none, memory, s3, postgres", kind)
	}
	ttl, err := durationOr(src, "ARTIFACT_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return ArtifactConfig{}, err
	}
	cfg := ArtifactConfig{
		Kind:        kind,
		Endpoint:    firstNonEmpty(Get(src, "ARTIFACT_S3_ENDPOINT"), Get(src, "ARTIFACT_MINIO_ENDPOINT")),
		Region:      firstNonEmpty(Get(src, "ARTIFACT_S3_REGION"), "us-east-1"),
		AccessKey:   firstNonEmpty(Get(src, "ARTIFACT_S3_ACCESS_KEY"), Get(src, "MINIO_ROOT_USER")),
		SecretKey:   firstNonEmpty(Get(src, "ARTIFACT_S3_SECRET_KEY"), Get(src, "MINIO_ROOT_PASSWORD")),
		Bucket:      firstNonEmpty(Get(src, "ARTIFACT_S3_BUCKET"), "snapsolve-artifacts"),
		UseSSL:      boolOr(src, "ARTIFACT_S3_USE_SSL", true),
		PostgresDSN: Get(src, "ARTIFACT_PG_DSN"),
		CacheSize:   intOr(src, "ARTIFACT_CACHE_SIZE", 256),
		CacheTTL:    ttl,
	}
	switch kind {
	case ArtifactS3:
		if cfg.Endpoint == "" {
			return ArtifactConfig{}, fmt.Errorf("config: ARTIFACT_S3_ENDPOINT is required for the s3 store")
		}
	case ArtifactPostgres:
		if cfg.PostgresDSN == "" {
			return ArtifactConfig{}, fmt.Errorf("config: ARTIFACT_PG_DSN is required for the postgres store")
		}
	}
	return cfg, nil
}

func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

// Duration reads a duration ("90s", "2m") or a bare number of seconds.
func Duration(src Source, key string) (time.Duration, bool, error) {
	raw := Get(src, key)
	if raw == "" {
		return 0, false, nil
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second, true, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false, fmt.Errorf("config: %s: invalid duration %q", key, raw)
	}
	return d, true, nil
}

func durationOr(src Source, key string, def time.Duration) (time.Duration, error) {
	d, ok, err := Duration(src, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return d, nil
}

func intOr(src Source, key string, def int) int {
	n, err := strconv.Atoi(Get(src, key))
	if err != nil {
		return def
	}
	return n
}

func boolOr(src Source, key string, def bool) bool {
	v, err := strconv.ParseBool(Get(src, key))
	if err != nil {
		return def
	}
	return v
}

// Float reads a float value; absent or invalid values return 0.
func Float(src Source, key string) float64 {
	f, err := strconv.ParseFloat(Get(src, key), 64)
	if err != nil {
		return 0
	}
	return f
}

// Int reads an int value; absent or invalid values return 0.
func Int(src Source, key string) int {
	return intOr(src, key, 0)
}
