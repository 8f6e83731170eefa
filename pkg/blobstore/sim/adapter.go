// Package sim is the simulated storage backend. It fabricates the same
// locators the real adapter would return without performing any network
// I/O, which keeps the whole pipeline runnable without live credentials.
package sim

import (
	"context"

	"github.com/yipson/mental-health-assistant/pkg/blobstore"

	"github.com/rs/zerolog"
)

// Adapter implements blobstore.Store without a backend.
type Adapter struct {
	bucket string
	log    zerolog.Logger
}

func NewAdapter(bucket string, log zerolog.Logger) *Adapter {
	return &Adapter{
		bucket: bucket,
		log:    log.With().Str("component", "simstore").Logger(),
	}
}

func (a *Adapter) Bucket() string { return a.bucket }

// Put returns a deterministic locator for key. The bytes are discarded.
func (a *Adapter) Put(ctx context.Context, data []byte, key, contentType string) (string, error) {
	a.log.Info().
		Str("key", key).
		Str("content_type", contentType).
		Int("size", len(data)).
		Msg("simulated upload")
	return blobstore.Locator(a.bucket, key), nil
}

// Download reports success without touching dest.
func (a *Adapter) Download(ctx context.Context, locator, dest string) error {
	a.log.Info().Str("locator", locator).Msg("simulated download")
	return nil
}

func (a *Adapter) Delete(ctx context.Context, key string) error {
	a.log.Info().Str("key", key).Msg("simulated delete")
	return nil
}

func (a *Adapter) Exists(ctx context.Context, key string) (bool, error) {
	return true, nil
}
