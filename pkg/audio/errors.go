package audio

import "errors"

var (
	// ErrStorage marks a fatal remote storage failure: a chunk upload or
	// the publish of a merged artifact. Staging downloads and cleanup
	// deletes degrade instead of failing.
	ErrStorage = errors.New("remote storage failure")

	// ErrMerge means every merge strategy failed. No sentinel record is
	// written in this case.
	ErrMerge = errors.New("audio merge failed")

	// ErrNoChunks means reconciliation could not stage a single chunk.
	ErrNoChunks = errors.New("no chunks available to merge")
)
