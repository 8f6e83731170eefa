package audio

import (
	"context"
	"testing"

	"github.com/yipson/mental-health-assistant/pkg/meta"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestChunk_StoresBytesAndRecord(t *testing.T) {
	store := newMemStore("therapy-audio")
	svc, _, repo := newTestPipeline(t, store)
	ctx := context.Background()
	sid := mustSession(t, repo)

	chunk, err := svc.IngestChunk(ctx, IngestInput{
		SessionID:  sid,
		ChunkIndex: 0,
		Data:       []byte("AAA"),
		UploadName: "blob.webm",
	})
	require.NoError(t, err)

	assert.Equal(t, ChunkFilename(sid, 0), chunk.Filename)
	assert.Equal(t, "audio/webm", chunk.ContentType, "content type inferred from extension")
	assert.NotEmpty(t, chunk.RemoteURL)

	data, ok := store.object(ChunkKey(sid, 0))
	require.True(t, ok)
	assert.Equal(t, "AAA", string(data))

	chunks, err := repo.ChunksBySession(ctx, sid)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.False(t, chunks[0].IsLast)

	// Non-terminal chunk must not trigger a merge.
	sentinel, err := repo.MergedChunk(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, sentinel)
}

func TestIngestChunk_UnknownSession(t *testing.T) {
	store := newMemStore("therapy-audio")
	svc, _, repo := newTestPipeline(t, store)
	ctx := context.Background()

	_, err := svc.IngestChunk(ctx, IngestInput{
		SessionID:  9999,
		ChunkIndex: 0,
		Data:       []byte("AAA"),
	})
	require.ErrorIs(t, err, meta.ErrSessionNotFound)

	// No dangling record, and the orphan object was removed.
	chunks, err := repo.ChunksBySession(ctx, 9999)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	_, ok := store.object(ChunkKey(9999, 0))
	assert.False(t, ok)
}

func TestIngestChunk_StorePutFails(t *testing.T) {
	store := newMemStore("therapy-audio")
	svc, _, repo := newTestPipeline(t, store)
	ctx := context.Background()
	sid := mustSession(t, repo)

	store.failPuts = true
	_, err := svc.IngestChunk(ctx, IngestInput{
		SessionID:  sid,
		ChunkIndex: 0,
		Data:       []byte("AAA"),
	})
	require.ErrorIs(t, err, ErrStorage)

	// Metadata must never reference an unstored object.
	chunks, err := repo.ChunksBySession(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestIngestChunk_TerminalChunkTriggersMerge(t *testing.T) {
	store := newMemStore("therapy-audio")
	svc, _, repo := newTestPipeline(t, store)
	ctx := context.Background()
	sid := mustSession(t, repo)

	_, err := svc.IngestChunk(ctx, IngestInput{
		SessionID:  sid,
		ChunkIndex: 0,
		Data:       []byte("AAA"),
	})
	require.NoError(t, err)

	_, err = svc.IngestChunk(ctx, IngestInput{
		SessionID:  sid,
		ChunkIndex: 1,
		IsLast:     true,
		Data:       []byte("BBB"),
	})
	require.NoError(t, err)

	// Merged artifact published with both fragments in order.
	data, ok := store.object(MergedKey(sid))
	require.True(t, ok)
	assert.Equal(t, "AAABBB", string(data))

	// Fragment records replaced by a single sentinel.
	chunks, err := repo.ChunksBySession(ctx, sid)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, meta.SentinelIndex, chunks[0].ChunkIndex)
	assert.True(t, chunks[0].IsLast)
	assert.NotEmpty(t, chunks[0].RemoteURL)

	// Fragment objects reclaimed.
	_, ok = store.object(ChunkKey(sid, 0))
	assert.False(t, ok)
	_, ok = store.object(ChunkKey(sid, 1))
	assert.False(t, ok)
}

func TestIngestChunk_ExplicitContentTypeKept(t *testing.T) {
	store := newMemStore("therapy-audio")
	svc, _, repo := newTestPipeline(t, store)
	sid := mustSession(t, repo)

	chunk, err := svc.IngestChunk(context.Background(), IngestInput{
		SessionID:   sid,
		ChunkIndex:  0,
		Data:        []byte("AAA"),
		ContentType: "audio/ogg",
	})
	require.NoError(t, err)
	assert.Equal(t, "audio/ogg", chunk.ContentType)
}
