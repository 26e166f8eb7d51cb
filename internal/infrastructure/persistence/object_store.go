package persistence

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/fieldrec/fieldstream/internal/domain/entity"
)

// ObjectStore talks to the S3-compatible blob store. Calls are issued once
// and surfaced verbatim; retry policy belongs to the caller.
type ObjectStore struct {
	svc        *s3.S3
	s3Uploader *s3manager.Uploader
	bucket     string
}

func NewObjectStore(sess *session.Session, bucket string) *ObjectStore {
	return &ObjectStore{
		svc:        s3.New(sess),
		s3Uploader: s3manager.NewUploader(sess),
		bucket:     bucket,
	}
}

// CreateMultipart initiates a multipart upload and returns the upload ID
// assigned by the store.
func (s *ObjectStore) CreateMultipart(ctx context.Context, key, contentType string, metadata map[string]string) (string, error) {
	in := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if len(metadata) > 0 {
		in.Metadata = aws.StringMap(metadata)
	}
	out, err := s.svc.CreateMultipartUploadWithContext(ctx, in)
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.UploadId), nil
}

// CompleteMultipart submits the part manifest and returns the final object
// location and entity tag.
func (s *ObjectStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []entity.Part) (string, string, error) {
	fileParts := make([]*s3.CompletedPart, 0, len(parts))
	for _, part := range parts {
		fileParts = append(fileParts, &s3.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int64(part.PartNumber),
		})
	}
	out, err := s.svc.CompleteMultipartUploadWithContext(ctx, &s3.CompleteMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		MultipartUpload: &s3.CompletedMultipartUpload{
			Parts: fileParts,
		},
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return "", "", err
	}
	return aws.StringValue(out.Location), aws.StringValue(out.ETag), nil
}

// AbortMultipart releases store-side storage reserved for uploaded but
// uncommitted parts.
func (s *ObjectStore) AbortMultipart(ctx context.Context, key, uploadID string) error {
	_, err := s.svc.AbortMultipartUploadWithContext(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	return err
}

// Put uploads an entire object through the buffered uploader.
func (s *ObjectStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	in := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	out, err := s.s3Uploader.UploadWithContext(ctx, in)
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.ETag), nil
}

// Head probes the stored object's size and content type.
func (s *ObjectStore) Head(ctx context.Context, key string) (*entity.ObjectInfo, error) {
	out, err := s.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return &entity.ObjectInfo{
		Key:         key,
		Size:        aws.Int64Value(out.ContentLength),
		ContentType: aws.StringValue(out.ContentType),
		ETag:        aws.StringValue(out.ETag),
	}, nil
}

// Get opens the object for reading, restricted to rng when non-empty.
func (s *ObjectStore) Get(ctx context.Context, key, rng string) (io.ReadCloser, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if rng != "" {
		in.Range = aws.String(rng)
	}
	out, err := s.svc.GetObjectWithContext(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}
	return out.Body, nil
}
