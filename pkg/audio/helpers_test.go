package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/yipson/mental-health-assistant/pkg/blobstore"
	"github.com/yipson/mental-health-assistant/pkg/meta"
	"github.com/yipson/mental-health-assistant/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// -----------------------------------------------------------------------------
// In-memory object store double
// -----------------------------------------------------------------------------

type memStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte

	putCalls int

	failPuts      bool
	failDownloads map[string]bool // by key
}

func newMemStore(bucket string) *memStore {
	return &memStore{
		bucket:        bucket,
		objects:       make(map[string][]byte),
		failDownloads: make(map[string]bool),
	}
}

func (s *memStore) Bucket() string { return s.bucket }

func (s *memStore) Put(ctx context.Context, data []byte, key, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPuts {
		return "", fmt.Errorf("injected put failure for %s", key)
	}
	s.objects[key] = append([]byte(nil), data...)
	s.putCalls++
	return blobstore.Locator(s.bucket, key), nil
}

func (s *memStore) Download(ctx context.Context, locator, dest string) error {
	key := blobstore.ExtractKey(locator, s.bucket)
	s.mu.Lock()
	fail := s.failDownloads[key]
	data, ok := s.objects[key]
	s.mu.Unlock()

	if fail {
		return fmt.Errorf("injected download failure for %s", key)
	}
	if !ok {
		return blobstore.ErrNotFound
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStore) object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

func (s *memStore) puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putCalls
}

// -----------------------------------------------------------------------------
// Pipeline setup
// -----------------------------------------------------------------------------

func newTestRepo(t *testing.T) *meta.Repository {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:audio_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(&meta.Session{}, &meta.Chunk{}))
	return meta.NewRepository(metaDB)
}

// newTestPipeline wires a pipeline over the byte-concat strategy only, so
// tests never depend on an ffmpeg binary.
func newTestPipeline(t *testing.T, store blobstore.Store) (*Service, *Reconciler, *meta.Repository) {
	t.Helper()
	repo := newTestRepo(t)
	m := metrics.New(prometheus.NewRegistry())
	strategies := []MergeStrategy{NewConcatStrategy(zerolog.Nop())}
	rec := NewReconciler(store, repo, strategies, t.TempDir(), m, zerolog.Nop())
	svc := NewService(store, repo, repo, rec, m, zerolog.Nop())
	return svc, rec, repo
}

func mustSession(t *testing.T, repo *meta.Repository) int64 {
	t.Helper()
	s := &meta.Session{Title: "test session"}
	require.NoError(t, repo.CreateSession(context.Background(), s))
	return s.ID
}

// mustUploadFragment stores chunk bytes and persists its record, the same
// state IngestChunk leaves behind for a non-terminal chunk.
func mustUploadFragment(t *testing.T, store blobstore.Store, repo *meta.Repository, sessionID int64, index int, data []byte) *meta.Chunk {
	t.Helper()
	ctx := context.Background()

	key := ChunkKey(sessionID, index)
	locator, err := store.Put(ctx, data, key, "audio/webm")
	require.NoError(t, err)

	c := &meta.Chunk{
		SessionID:   sessionID,
		ChunkIndex:  index,
		Filename:    ChunkFilename(sessionID, index),
		ContentType: "audio/webm",
		RemoteURL:   locator,
		Path:        blobstore.ShortLocator(store.Bucket(), key),
	}
	require.NoError(t, repo.SaveChunk(ctx, c))
	return c
}
