package transfer

import (
	"context"

	"github.com/fitstream/activity_downloader/internal/job"
)

// Source opens a byte stream for a remote activity file.
type Source interface {
	Open(ctx context.Context, ref job.Source) (Stream, error)
}

// Stream yields the chunks of one remote file in order.
type Stream interface {
	// TotalBytes reports the declared length of the file, if the remote
	// side announced one.
	TotalBytes() (int64, bool)

	// Next returns the next chunk, or io.EOF once the stream is
	// exhausted. Transport failures are returned classified as
	// *TransientError or *PermanentError; after a transient error Next
	// may be called again to retry from the current offset.
	Next(ctx context.Context) ([]byte, error)

	Close() error
}

// Writer opens destinations for chunked writes.
type Writer interface {
	Open(dest string) (Handle, error)
}

// Handle is an open destination. Exactly one of Finalize or Discard ends
// its lifetime: Finalize publishes the completed file, Discard removes
// any partial output.
type Handle interface {
	WriteAt(p []byte, off int64) (int, error)
	Finalize() error
	Discard() error
}
