// Package signer mints short-lived, scope-limited credentials for the
// object store. Each credential is a presigned URL covering exactly one
// operation on one object key; signing happens locally with no network
// round trip.
package signer

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/fieldrec/fieldstream/internal/fault"
)

const (
	// DefaultTTL applies when the caller passes a zero TTL.
	DefaultTTL = 15 * time.Minute
	// MaxTTL bounds every issued credential so it cannot outlive the
	// upload session it backs.
	MaxTTL = time.Hour
)

// GetOverrides adjusts the response headers the store will send when a
// read credential is redeemed, e.g. to force inline video playback with a
// friendly filename.
type GetOverrides struct {
	ContentType        string
	ContentDisposition string
}

type Signer struct {
	svc    *s3.S3
	bucket string
}

// New validates the signing configuration up front so a missing region or
// bucket fails at startup instead of on the first request.
func New(svc *s3.S3, bucket string) (*Signer, error) {
	if bucket == "" {
		return nil, fault.Configuration("object store bucket is not configured")
	}
	if aws.StringValue(svc.Config.Region) == "" {
		return nil, fault.Configuration("object store region is not configured")
	}
	if svc.Config.Credentials == nil {
		return nil, fault.Configuration("object store credentials are not configured")
	}
	return &Signer{svc: svc, bucket: bucket}, nil
}

// PresignPut issues a credential for a single whole-object write.
func (s *Signer) PresignPut(key, contentType string, metadata map[string]string, ttl time.Duration) (string, error) {
	ttl, err := boundTTL(ttl)
	if err != nil {
		return "", err
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if len(metadata) > 0 {
		in.Metadata = aws.StringMap(metadata)
	}
	req, _ := s.svc.PutObjectRequest(in)
	return presign(req.Presign(ttl))
}

// PresignUploadPart issues a credential scoped to one part of one
// multipart upload.
func (s *Signer) PresignUploadPart(key, uploadID string, partNumber int64, ttl time.Duration) (string, error) {
	ttl, err := boundTTL(ttl)
	if err != nil {
		return "", err
	}
	req, _ := s.svc.UploadPartRequest(&s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int64(partNumber),
	})
	return presign(req.Presign(ttl))
}

// PresignGet issues a read credential for one object, optionally
// overriding the response content type and disposition.
func (s *Signer) PresignGet(key string, ttl time.Duration, overrides *GetOverrides) (string, error) {
	ttl, err := boundTTL(ttl)
	if err != nil {
		return "", err
	}
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if overrides != nil {
		if overrides.ContentType != "" {
			in.ResponseContentType = aws.String(overrides.ContentType)
		}
		if overrides.ContentDisposition != "" {
			in.ResponseContentDisposition = aws.String(overrides.ContentDisposition)
		}
	}
	req, _ := s.svc.GetObjectRequest(in)
	return presign(req.Presign(ttl))
}

// InlineDisposition builds a Content-Disposition override for in-browser
// playback under the given filename.
func InlineDisposition(filename string) string {
	return fmt.Sprintf("inline; filename=%q", filename)
}

func boundTTL(ttl time.Duration) (time.Duration, error) {
	if ttl == 0 {
		return DefaultTTL, nil
	}
	if ttl < 0 || ttl > MaxTTL {
		return 0, fault.Validation("credential ttl %s is outside (0, %s]", ttl, MaxTTL)
	}
	return ttl, nil
}

func presign(url string, err error) (string, error) {
	if err != nil {
		return "", &fault.Error{Kind: fault.KindConfiguration, Msg: "cannot sign store credential", Err: err}
	}
	return url, nil
}
