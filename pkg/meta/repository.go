package meta

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

// Repository owns the (session, chunk index) -> chunk metadata mapping.
// Per-record atomicity only; the reconciler copes with partial visibility.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveChunk inserts a new chunk record, or updates it when the primary
// key is already set (the sentinel upsert path).
func (r *Repository) SaveChunk(ctx context.Context, c *Chunk) error {
	if err := r.db.Conn().WithContext(ctx).Save(c).Error; err != nil {
		return fmt.Errorf("save chunk record: %w", err)
	}
	return nil
}

// ChunksBySession returns every chunk record of a session ordered by
// chunk index ascending. The sentinel, when present, sorts first.
func (r *Repository) ChunksBySession(ctx context.Context, sessionID int64) ([]Chunk, error) {
	var chunks []Chunk
	err := r.db.Conn().WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	return chunks, err
}

// MergedChunk returns the sentinel record of a session, or nil when no
// merge has been published yet.
func (r *Repository) MergedChunk(ctx context.Context, sessionID int64) (*Chunk, error) {
	var chunk Chunk
	err := r.db.Conn().WithContext(ctx).
		Where("session_id = ? AND chunk_index = ?", sessionID, SentinelIndex).
		First(&chunk).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

func (r *Repository) DeleteChunk(ctx context.Context, c *Chunk) error {
	return r.db.Conn().WithContext(ctx).Delete(c).Error
}

func (r *Repository) FindSession(ctx context.Context, id int64) (*Session, error) {
	var session Session
	err := r.db.Conn().WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	if err := r.db.Conn().WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *Repository) Sessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := r.db.Conn().WithContext(ctx).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}
