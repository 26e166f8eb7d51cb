package repository

import (
	"context"
	"io"

	"github.com/fieldrec/fieldstream/internal/domain/entity"
)

// ObjectStore brokers the object-store protocol. Implementations issue
// signed requests against an external S3-compatible store; none of the
// calls are retried here.
type ObjectStore interface {
	// CreateMultipart initiates a multipart upload and returns the
	// store-assigned upload ID.
	CreateMultipart(ctx context.Context, key, contentType string, metadata map[string]string) (string, error)
	// CompleteMultipart submits the ordered part manifest and returns the
	// final object location and entity tag.
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []entity.Part) (location, etag string, err error)
	// AbortMultipart releases storage reserved for uncommitted parts.
	AbortMultipart(ctx context.Context, key, uploadID string) error
	// Put stores an entire object and returns its entity tag.
	Put(ctx context.Context, key, contentType string, body io.Reader) (etag string, err error)
	// Head returns the stored object's metadata.
	Head(ctx context.Context, key string) (*entity.ObjectInfo, error)
	// Get opens the object for reading, restricted to the given range when
	// rng is non-empty (an HTTP Range header value).
	Get(ctx context.Context, key, rng string) (io.ReadCloser, error)
}
