package meta

import (
	"time"

	"gorm.io/datatypes"
)

// SentinelIndex marks the merged-artifact record of a session. Real
// fragments use indexes 0..N-1; at most one sentinel exists per session.
const SentinelIndex = -1

// Session is the scheduling record chunks attach to. The audio pipeline
// only ever reads its identifier; the rest is CRUD glue.
type Session struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Title     string `gorm:"type:varchar(255)"`
	Notes     string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Session) TableName() string { return "sessions" }

// Chunk is one uploaded audio fragment, or the merged artifact when
// ChunkIndex == SentinelIndex. Fragment records are immutable once
// written; only the sentinel is ever updated.
type Chunk struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	SessionID int64 `gorm:"index:idx_chunk_session;not null"`

	ChunkIndex int  `gorm:"index:idx_chunk_session;not null"`
	IsLast     bool // true on the terminal fragment and on the sentinel

	Filename    string `gorm:"type:varchar(255)"`
	ContentType string `gorm:"type:varchar(100)"`

	// RemoteURL is the object store locator; Path keeps the s3://<key>
	// short-form reference alongside it.
	RemoteURL string `gorm:"type:text"`
	Path      string `gorm:"type:text"`

	// Extra holds upload attributes (size, original client filename)
	// that don't warrant their own columns.
	Extra datatypes.JSON

	CreatedAt time.Time
}

func (Chunk) TableName() string { return "audio_chunks" }

func (c *Chunk) IsSentinel() bool { return c.ChunkIndex == SentinelIndex }
