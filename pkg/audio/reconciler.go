package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/yipson/mental-health-assistant/pkg/blobstore"
	"github.com/yipson/mental-health-assistant/pkg/meta"
	"github.com/yipson/mental-health-assistant/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

// AllRecordedChunks tells Reconcile to merge however many fragment
// records exist instead of a caller-supplied count.
const AllRecordedChunks = -1

// stagingConcurrency bounds parallel chunk downloads per reconciliation.
const stagingConcurrency = 4

// ChunkRepository is the slice of the metadata layer the pipeline needs.
type ChunkRepository interface {
	SaveChunk(ctx context.Context, c *meta.Chunk) error
	ChunksBySession(ctx context.Context, sessionID int64) ([]meta.Chunk, error)
	MergedChunk(ctx context.Context, sessionID int64) (*meta.Chunk, error)
	DeleteChunk(ctx context.Context, c *meta.Chunk) error
}

// SessionFinder resolves session ownership. Sessions are otherwise
// external to this pipeline.
type SessionFinder interface {
	FindSession(ctx context.Context, id int64) (*meta.Session, error)
}

// Reconciler turns all fragments of a session into one published
// artifact and reclaims the fragment storage afterwards.
type Reconciler struct {
	store       blobstore.Store
	repo        ChunkRepository
	strategies  []MergeStrategy
	stagingRoot string
	metrics     *metrics.Metrics
	log         zerolog.Logger

	// group serializes reconciliation per session: concurrent duplicate
	// terminal-chunk deliveries collapse into a single run and share its
	// result. Sequential retries are caught by the sentinel check.
	group singleflight.Group
}

func NewReconciler(store blobstore.Store, repo ChunkRepository, strategies []MergeStrategy, stagingRoot string, m *metrics.Metrics, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:       store,
		repo:        repo,
		strategies:  strategies,
		stagingRoot: stagingRoot,
		metrics:     m,
		log:         log.With().Str("component", "reconciler").Logger(),
	}
}

// Reconcile merges the session's chunks and returns the locator of the
// published artifact. expectedChunks is the terminal chunk's index plus
// one, or AllRecordedChunks to trust the repository.
func (r *Reconciler) Reconcile(ctx context.Context, sessionID int64, expectedChunks int) (string, error) {
	v, err, shared := r.group.Do(strconv.FormatInt(sessionID, 10), func() (any, error) {
		return r.reconcile(ctx, sessionID, expectedChunks)
	})
	if err != nil {
		return "", err
	}
	if shared {
		r.log.Debug().Int64("session_id", sessionID).Msg("coalesced duplicate reconciliation")
	}
	return v.(string), nil
}

func (r *Reconciler) reconcile(ctx context.Context, sessionID int64, expectedChunks int) (string, error) {
	start := time.Now()
	log := r.log.With().Int64("session_id", sessionID).Logger()
	log.Info().Int("expected_chunks", expectedChunks).Msg("reconciling session audio")

	// Already published? Then this is a retry and there is nothing to do.
	existing, err := r.repo.MergedChunk(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("look up merged record: %w", err)
	}
	if existing != nil && existing.RemoteURL != "" {
		log.Info().Str("locator", existing.RemoteURL).Msg("merged artifact already published")
		return existing.RemoteURL, nil
	}

	// Staging directory exclusively owned by this run.
	staging, err := os.MkdirTemp(r.stagingRoot, fmt.Sprintf("chunks_%d_%s_", sessionID, uuid.NewString()[:8]))
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			log.Warn().Err(err).Str("dir", staging).Msg("could not remove staging dir")
		}
	}()

	records, err := r.repo.ChunksBySession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("list chunk records: %w", err)
	}
	var fragments []meta.Chunk
	for _, rec := range records {
		if rec.ChunkIndex >= 0 && rec.RemoteURL != "" {
			fragments = append(fragments, rec)
		}
	}

	paths := r.stage(ctx, log, staging, sessionID, fragments, expectedChunks)
	if len(paths) == 0 {
		r.metrics.Merges.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("%w: session %d", ErrNoChunks, sessionID)
	}

	// Merge order comes from the index embedded in each filename, never
	// from download completion order.
	sort.Slice(paths, func(i, j int) bool {
		a, _ := ParseChunkIndex(filepath.Base(paths[i]))
		b, _ := ParseChunkIndex(filepath.Base(paths[j]))
		return a < b
	})

	output := filepath.Join(staging, MergedFilename(sessionID))
	merged := false
	for _, strategy := range r.strategies {
		if err := strategy.Merge(ctx, paths, output); err != nil {
			log.Warn().Err(err).Str("strategy", strategy.Name()).Msg("merge strategy failed")
			continue
		}
		r.metrics.MergeStrategyUsed.WithLabelValues(strategy.Name()).Inc()
		log.Info().Str("strategy", strategy.Name()).Int("chunks", len(paths)).Msg("chunks merged")
		merged = true
		break
	}
	if !merged {
		r.metrics.Merges.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("%w: all strategies failed for session %d", ErrMerge, sessionID)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return "", fmt.Errorf("read merged output: %w", err)
	}
	mergedKey := MergedKey(sessionID)
	locator, err := r.store.Put(ctx, data, mergedKey, MergedContentType)
	if err != nil {
		r.metrics.Merges.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("%w: publish merged artifact: %v", ErrStorage, err)
	}

	sentinel := existing
	if sentinel == nil {
		sentinel = &meta.Chunk{
			SessionID:   sessionID,
			ChunkIndex:  meta.SentinelIndex,
			IsLast:      true,
			Filename:    MergedFilename(sessionID),
			ContentType: MergedContentType,
		}
	}
	sentinel.RemoteURL = locator
	sentinel.Path = blobstore.ShortLocator(r.store.Bucket(), mergedKey)
	if extra, err := json.Marshal(map[string]any{
		"sizeBytes":    len(data),
		"mergedChunks": len(paths),
	}); err == nil {
		sentinel.Extra = datatypes.JSON(extra)
	}
	if err := r.repo.SaveChunk(ctx, sentinel); err != nil {
		return "", fmt.Errorf("save merged record: %w", err)
	}

	// Cleanup only runs after a successful publish.
	r.cleanup(ctx, log, fragments)

	r.metrics.Merges.WithLabelValues("success").Inc()
	r.metrics.MergeDuration.Observe(time.Since(start).Seconds())
	log.Info().Str("locator", locator).Dur("elapsed", time.Since(start)).Msg("reconciliation complete")
	return locator, nil
}

// stage downloads chunks into the staging directory and returns the local
// paths that arrived. Individual failures are logged and skipped; the
// merge proceeds with whatever subset downloaded.
func (r *Reconciler) stage(ctx context.Context, log zerolog.Logger, staging string, sessionID int64, fragments []meta.Chunk, expectedChunks int) []string {
	var (
		mu    sync.Mutex
		paths []string
	)
	var g errgroup.Group
	g.SetLimit(stagingConcurrency)

	keep := func(p string) {
		mu.Lock()
		paths = append(paths, p)
		mu.Unlock()
	}

	if len(fragments) > 0 && (expectedChunks == AllRecordedChunks || len(fragments) >= expectedChunks) {
		// Preferred path: repository-backed locators survive key drift.
		log.Info().Int("records", len(fragments)).Msg("staging chunks from repository records")
		for _, rec := range fragments {
			dest := filepath.Join(staging, rec.Filename)
			locator := rec.RemoteURL
			index := rec.ChunkIndex
			g.Go(func() error {
				if err := r.fetch(ctx, locator, dest); err != nil {
					log.Warn().Err(err).Int("chunk_index", index).Msg("chunk download failed, skipping")
					r.metrics.MergeChunksSkipped.Inc()
					return nil
				}
				keep(dest)
				return nil
			})
		}
	} else {
		// The repository lags behind the uploads: reconstruct every key
		// from the naming scheme and fetch directly.
		log.Info().Int("expected_chunks", expectedChunks).Msg("staging chunks by reconstructed keys")
		for i := 0; i < expectedChunks; i++ {
			index := i
			key := ChunkKey(sessionID, index)
			dest := filepath.Join(staging, ChunkFilename(sessionID, index))
			g.Go(func() error {
				if err := r.fetch(ctx, blobstore.Locator(r.store.Bucket(), key), dest); err != nil {
					log.Warn().Err(err).Int("chunk_index", index).Msg("chunk download failed, skipping")
					r.metrics.MergeChunksSkipped.Inc()
					return nil
				}
				keep(dest)
				return nil
			})
		}
	}

	g.Wait()
	return paths
}

// fetch probes existence before downloading to skip a doomed transfer.
func (r *Reconciler) fetch(ctx context.Context, locator, dest string) error {
	key := blobstore.ExtractKey(locator, r.store.Bucket())
	if ok, err := r.store.Exists(ctx, key); err == nil && !ok {
		return blobstore.ErrNotFound
	}
	return r.store.Download(ctx, locator, dest)
}

// cleanup reclaims fragment storage: remote objects first, then records.
// Every failure is logged and swallowed.
func (r *Reconciler) cleanup(ctx context.Context, log zerolog.Logger, fragments []meta.Chunk) {
	for i := range fragments {
		rec := &fragments[i]
		key := blobstore.ExtractKey(rec.RemoteURL, r.store.Bucket())
		if err := r.store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("could not delete chunk object")
		}
		if err := r.repo.DeleteChunk(ctx, rec); err != nil {
			log.Warn().Err(err).Int("chunk_index", rec.ChunkIndex).Msg("could not delete chunk record")
		}
	}
	log.Info().Int("chunks", len(fragments)).Msg("fragment storage reclaimed")
}
