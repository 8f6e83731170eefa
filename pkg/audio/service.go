package audio

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yipson/mental-health-assistant/pkg/blobstore"
	"github.com/yipson/mental-health-assistant/pkg/meta"
	"github.com/yipson/mental-health-assistant/pkg/metrics"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

// IngestInput is one uploaded chunk.
type IngestInput struct {
	SessionID   int64
	ChunkIndex  int
	IsLast      bool
	Data        []byte
	ContentType string
	UploadName  string // client-side filename, recorded for diagnostics
}

// Service accepts chunks one at a time: bytes go to the object store,
// metadata goes to the repository, and the terminal chunk triggers
// reconciliation synchronously.
type Service struct {
	store      blobstore.Store
	repo       ChunkRepository
	sessions   SessionFinder
	reconciler *Reconciler
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

func NewService(store blobstore.Store, repo ChunkRepository, sessions SessionFinder, reconciler *Reconciler, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		repo:       repo,
		sessions:   sessions,
		reconciler: reconciler,
		metrics:    m,
		log:        log.With().Str("component", "ingest").Logger(),
	}
}

func (s *Service) IngestChunk(ctx context.Context, in IngestInput) (*meta.Chunk, error) {
	log := s.log.With().
		Int64("session_id", in.SessionID).
		Int("chunk_index", in.ChunkIndex).
		Bool("is_last", in.IsLast).
		Logger()
	log.Info().Int("size", len(in.Data)).Msg("ingesting audio chunk")

	filename := ChunkFilename(in.SessionID, in.ChunkIndex)
	key := ChunkKey(in.SessionID, in.ChunkIndex)
	contentType := in.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(filename)
	}

	// Bytes first: a metadata record must never reference an object that
	// was not stored.
	locator, err := s.store.Put(ctx, in.Data, key, contentType)
	if err != nil {
		s.metrics.IngestFailures.Inc()
		return nil, fmt.Errorf("%w: upload chunk %d: %v", ErrStorage, in.ChunkIndex, err)
	}

	if _, err := s.sessions.FindSession(ctx, in.SessionID); err != nil {
		// No record without an owner; drop the orphan object too.
		if derr := s.store.Delete(ctx, key); derr != nil {
			log.Warn().Err(derr).Str("key", key).Msg("could not remove orphan chunk object")
		}
		s.metrics.IngestFailures.Inc()
		return nil, fmt.Errorf("resolve session %d: %w", in.SessionID, err)
	}

	chunk := &meta.Chunk{
		SessionID:   in.SessionID,
		ChunkIndex:  in.ChunkIndex,
		IsLast:      in.IsLast,
		Filename:    filename,
		ContentType: contentType,
		RemoteURL:   locator,
		Path:        blobstore.ShortLocator(s.store.Bucket(), key),
	}
	if extra, err := json.Marshal(map[string]any{
		"sizeBytes":  len(in.Data),
		"uploadName": in.UploadName,
	}); err == nil {
		chunk.Extra = datatypes.JSON(extra)
	}
	if err := s.repo.SaveChunk(ctx, chunk); err != nil {
		s.metrics.IngestFailures.Inc()
		return nil, err
	}
	s.metrics.ChunksIngested.Inc()

	if in.IsLast {
		log.Info().Msg("terminal chunk received, reconciling")
		if _, err := s.reconciler.Reconcile(ctx, in.SessionID, in.ChunkIndex+1); err != nil {
			return nil, err
		}
	}
	return chunk, nil
}
