package sink

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fitstream/activity_downloader/internal/transfer"
)

const (
	dirPerm       = 0755
	partialSuffix = ".partial"
)

// FileWriter persists chunks to local disk. Chunks land in a .partial
// sibling of the destination; only Finalize publishes the file under its
// real name, so a cancelled or failed job never leaves a complete-looking
// artifact behind.
type FileWriter struct{}

func NewFileWriter() *FileWriter {
	return &FileWriter{}
}

func (*FileWriter) Open(dest string) (transfer.Handle, error) {
	if err := os.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return nil, &transfer.WriteError{Path: dest, Err: err}
	}

	f, err := os.Create(dest + partialSuffix)
	if err != nil {
		return nil, &transfer.WriteError{Path: dest, Err: err}
	}

	return &fileHandle{file: f, dest: dest}, nil
}

type fileHandle struct {
	file *os.File
	dest string
}

func (h *fileHandle) WriteAt(p []byte, off int64) (int, error) {
	n, err := h.file.WriteAt(p, off)
	if err != nil {
		return n, &transfer.WriteError{Path: h.dest, Err: err}
	}

	return n, nil
}

// Finalize flushes the partial file and renames it into place.
func (h *fileHandle) Finalize() error {
	if err := h.file.Sync(); err != nil {
		h.file.Close()

		return &transfer.WriteError{Path: h.dest, Err: err}
	}

	if err := h.file.Close(); err != nil {
		return &transfer.WriteError{Path: h.dest, Err: err}
	}

	if err := os.Rename(h.dest+partialSuffix, h.dest); err != nil {
		return &transfer.WriteError{Path: h.dest, Err: err}
	}

	return nil
}

// Discard removes the partial file. Safe to call after Finalize failed
// partway; a missing partial is not an error.
func (h *fileHandle) Discard() error {
	h.file.Close()

	if err := os.Remove(h.dest + partialSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &transfer.WriteError{Path: h.dest, Err: err}
	}

	return nil
}
