package audio

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ContainerExt is the fixed container extension for every stored chunk
// and merged artifact. Browser MediaRecorder uploads arrive as webm.
const ContainerExt = ".webm"

// MergedContentType is the MIME type published with merged artifacts.
const MergedContentType = "audio/webm"

// The key scheme is load-bearing: reconciliation can reconstruct every
// chunk key from (sessionID, index) alone when the repository lags behind
// the uploads, so any change here breaks discovery of old sessions.
//
//	fragments: audio/{sid}/chunks/{sid}_chunk_{i}.webm
//	merged:    audio/{sid}/{sid}_complete.webm

func ChunkFilename(sessionID int64, index int) string {
	return fmt.Sprintf("%d_chunk_%d%s", sessionID, index, ContainerExt)
}

func MergedFilename(sessionID int64) string {
	return fmt.Sprintf("%d_complete%s", sessionID, ContainerExt)
}

func ChunkKey(sessionID int64, index int) string {
	return fmt.Sprintf("audio/%d/chunks/%s", sessionID, ChunkFilename(sessionID, index))
}

func MergedKey(sessionID int64) string {
	return fmt.Sprintf("audio/%d/%s", sessionID, MergedFilename(sessionID))
}

// ParseChunkIndex recovers the chunk index embedded between the last '_'
// and the extension of a chunk filename.
func ParseChunkIndex(filename string) (int, error) {
	us := strings.LastIndex(filename, "_")
	dot := strings.LastIndex(filename, ".")
	if us < 0 || dot < 0 || dot <= us+1 {
		return 0, fmt.Errorf("no chunk index in filename %q", filename)
	}
	index, err := strconv.Atoi(filename[us+1 : dot])
	if err != nil {
		return 0, fmt.Errorf("no chunk index in filename %q", filename)
	}
	return index, nil
}

// ContentTypeFor infers a MIME type from the file extension, for uploads
// that arrive without one.
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".webm":
		return "audio/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
