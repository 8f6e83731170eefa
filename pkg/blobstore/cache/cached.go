// Package cache decorates a blobstore.Store with a redis-backed existence
// cache. Reconciliation probes Exists before every download; a cache hit
// saves a Head round trip to the backend.
package cache

import (
	"context"
	"time"

	"github.com/yipson/mental-health-assistant/pkg/blobstore"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type CachedStore struct {
	backend blobstore.Store
	client  *redis.Client
	ttl     time.Duration
	log     zerolog.Logger
}

type Config struct {
	RedisURL string // redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration
}

func New(backend blobstore.Store, cfg Config, log zerolog.Logger) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
		log:     log.With().Str("component", "storecache").Logger(),
	}, nil
}

func (s *CachedStore) cacheKey(key string) string {
	return "mha:obj:" + key
}

func (s *CachedStore) Bucket() string { return s.backend.Bucket() }

func (s *CachedStore) Exists(ctx context.Context, key string) (bool, error) {
	val, err := s.client.Exists(ctx, s.cacheKey(key)).Result()
	if err != nil {
		// Redis trouble degrades to an uncached probe.
		s.log.Warn().Err(err).Msg("redis exists check failed")
	} else if val > 0 {
		return true, nil
	}

	found, err := s.backend.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if found {
		// Fill asynchronously so a slow redis never stalls the caller.
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.client.Set(fillCtx, s.cacheKey(key), "1", s.ttl)
		}()
	}
	return found, nil
}

func (s *CachedStore) Put(ctx context.Context, data []byte, key, contentType string) (string, error) {
	locator, err := s.backend.Put(ctx, data, key, contentType)
	if err != nil {
		return "", err
	}
	// Fill only after the backend accepted the object.
	s.client.Set(ctx, s.cacheKey(key), "1", s.ttl)
	return locator, nil
}

func (s *CachedStore) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return err
	}
	s.client.Del(ctx, s.cacheKey(key))
	return nil
}

// Download passes through untouched. Chunk payloads can be large and the
// cache only tracks existence.
func (s *CachedStore) Download(ctx context.Context, locator, dest string) error {
	return s.backend.Download(ctx, locator, dest)
}
