// Package blob defines the binary object store used for asset payloads.
// Backends live in subpackages (memory, fs, s3).
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an object key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectMeta describes a stored object.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// UploadParams carries optional metadata alongside an upload.
type UploadParams struct {
	ObjectKey string
	MimeType  string
}

// Store is the interface asset storage backends implement.
type Store interface {
	// Upload stores the reader's content under the given key.
	Upload(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download opens the object for reading. Callers close the reader.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the object.
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta returns metadata without reading the payload.
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// SourceURI returns a URI from which the object can be fetched
	// out of band, e.g. a file:// path or a presigned HTTP URL.
	SourceURI(ctx context.Context, objectKey string) (string, error)
}
