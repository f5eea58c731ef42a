package artifact

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int
	// BlobMaxBytes skips caching of larger blobs.
	BlobMaxBytes int

	ListTTL        time.Duration
	ListMaxEntries int

	URLTTL        time.Duration
	URLMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:        5 * time.Minute,
		BlobMaxEntries: 1024,
		BlobMaxBytes:   1 << 20,
		ListTTL:        30 * time.Second,
		ListMaxEntries: 512,
		URLTTL:         5 * time.Minute,
		URLMaxEntries:  1024,
	}
}

type MetricsSnapshot struct {
	BlobHits      uint64
	BlobMisses    uint64
	ListHits      uint64
	ListMisses    uint64
	URLHits       uint64
	URLMisses     uint64
	OriginReadErr uint64
}

// CachedStore is a read-through cache in front of a remote store. Writes go
// to the origin first and then refresh the cache.
type CachedStore struct {
	origin   Store
	maxBytes int

	blobs *expirable.LRU[string, []byte]
	lists *expirable.LRU[string, []string]
	urls  *expirable.LRU[string, string]

	blobHits, blobMisses, listHits, listMisses, urlHits, urlMisses, readErr atomic.Uint64
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.BlobTTL <= 0 {
		cfg.BlobTTL = def.BlobTTL
	}
	if cfg.BlobMaxEntries <= 0 {
		cfg.BlobMaxEntries = def.BlobMaxEntries
	}
	if cfg.BlobMaxBytes <= 0 {
		cfg.BlobMaxBytes = def.BlobMaxBytes
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListMaxEntries <= 0 {
		cfg.ListMaxEntries = def.ListMaxEntries
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = def.URLTTL
	}
	if cfg.URLMaxEntries <= 0 {
		cfg.URLMaxEntries = def.URLMaxEntries
	}
	return &CachedStore{
		origin:   origin,
		maxBytes: cfg.BlobMaxBytes,
		blobs:    expirable.NewLRU[string, []byte](cfg.BlobMaxEntries, nil, cfg.BlobTTL),
		lists:    expirable.NewLRU[string, []string](cfg.ListMaxEntries, nil, cfg.ListTTL),
		urls:     expirable.NewLRU[string, string](cfg.URLMaxEntries, nil, cfg.URLTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, runID, path string, content []byte) error {
	runID, path, err := cleanKey(runID, path)
	if err != nil {
		return err
	}
	if err := s.origin.Put(ctx, runID, path, content); err != nil {
		return err
	}
	key := objectKey(runID, path)
	s.remember(key, content)
	s.lists.Remove(runID)
	s.urls.Remove(key)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, runID, path string) ([]byte, error) {
	runID, path, err := cleanKey(runID, path)
	if err != nil {
		return nil, err
	}
	key := objectKey(runID, path)
	if raw, ok := s.blobs.Get(key); ok {
		s.blobHits.Add(1)
		return append([]byte{}, raw...), nil
	}
	s.blobMisses.Add(1)
	raw, err := s.origin.Get(ctx, runID, path)
	if err != nil {
		s.readErr.Add(1)
		return nil, err
	}
	s.remember(key, raw)
	return append([]byte{}, raw...), nil
}

func (s *CachedStore) GetURL(ctx context.Context, runID, path string) (string, error) {
	runID, path, err := cleanKey(runID, path)
	if err != nil {
		return "", err
	}
	key := objectKey(runID, path)
	if u, ok := s.urls.Get(key); ok {
		s.urlHits.Add(1)
		return u, nil
	}
	s.urlMisses.Add(1)
	u, err := s.origin.GetURL(ctx, runID, path)
	if err != nil {
		s.readErr.Add(1)
		return "", err
	}
	if u != "" {
		s.urls.Add(key, u)
	}
	return u, nil
}

func (s *CachedStore) List(ctx context.Context, runID string) ([]string, error) {
	runID, err := cleanRunID(runID)
	if err != nil {
		return nil, err
	}
	if list, ok := s.lists.Get(runID); ok {
		s.listHits.Add(1)
		return append([]string(nil), list...), nil
	}
	s.listMisses.Add(1)
	list, err := s.origin.List(ctx, runID)
	if err != nil {
		s.readErr.Add(1)
		return nil, err
	}
	s.lists.Add(runID, append([]string(nil), list...))
	return list, nil
}

func (s *CachedStore) remember(key string, content []byte) {
	if len(content) > s.maxBytes {
		s.blobs.Remove(key)
		return
	}
	s.blobs.Add(key, append([]byte{}, content...))
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		BlobHits:      s.blobHits.Load(),
		BlobMisses:    s.blobMisses.Load(),
		ListHits:      s.listHits.Load(),
		ListMisses:    s.listMisses.Load(),
		URLHits:       s.urlHits.Load(),
		URLMisses:     s.urlMisses.Load(),
		OriginReadErr: s.readErr.Load(),
	}
}
