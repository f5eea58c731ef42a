package artifact

import (
	"context"
	"fmt"
	"strings"

	"projectarchitect/internal/config"
)

// Open builds the store selected by cfg.Backend. Remote backends are
// fronted by a CachedStore. The returned close func releases backend
// connections.
func Open(ctx context.Context, cfg config.ArtifactConfig) (Store, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemoryStore(), noop, nil
	case "s3", "minio":
		s, err := NewS3Store(S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		return NewCachedStore(s, DefaultCacheConfig()), noop, nil
	case "postgres", "postgresql":
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, nil, fmt.Errorf("artifact backend postgres requires a dsn")
		}
		s, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return NewCachedStore(s, DefaultCacheConfig()), s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
}
