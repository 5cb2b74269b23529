package storage

import (
	"context"
	stderrors "errors"
	"io"
	"time"
)

// ErrNotFound is returned (wrapped) by Download when no object exists at
// the requested path.
var ErrNotFound = stderrors.New("storage: object not found")

// FileInfo contains metadata about a stored object.
type FileInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// Storage defines the object operations used for checkpoints and
// object-backed record sources. Paths are slash-separated keys.
type Storage interface {
	// Upload writes data from reader to the given path, replacing any
	// existing object. Readers never observe a partially written object.
	Upload(ctx context.Context, path string, reader io.Reader) error

	// Download returns a reader for the object at the given path.
	// The caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object at the given path.
	// Returns nil if the object does not exist.
	Delete(ctx context.Context, path string) error

	// Exists checks whether an object exists at the given path.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns metadata for all objects whose path starts with prefix,
	// sorted by path.
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}
