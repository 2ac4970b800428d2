// Package storage provides an abstraction over the object storage service that
// files are uploaded to. The GCS implementation is the production backend; the
// local and in-memory implementations satisfy the same interface for offline
// runs and testing.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Scheme is the URI scheme used for canonical object identifiers.
const Scheme = "gs"

var (
	// ErrObjectExists is returned by UploadBlob when FailIfExists is set and
	// the target object already exists at write time.
	ErrObjectExists = errors.New("storage: object already exists")

	// ErrBucketNotFound is returned when the named bucket does not exist.
	ErrBucketNotFound = errors.New("storage: bucket does not exist")
)

// Client is the narrow set of object storage operations the uploader needs.
// Authentication and transport are entirely the implementation's concern.
type Client interface {
	// BlobExists reports whether an object named name exists in bucket.
	BlobExists(ctx context.Context, bucket, name string) (bool, error)

	// UploadBlob writes req.Content to req.Bucket/req.Name. When
	// req.FailIfExists is true the write is conditional on the object not
	// existing and fails with ErrObjectExists otherwise; the check and the
	// write are a single atomic operation.
	UploadBlob(ctx context.Context, req *UploadRequest) (*BlobInfo, error)

	// MakePublic grants public read access to the object and returns its
	// public URL.
	MakePublic(ctx context.Context, bucket, name string) (string, error)

	// ListBuckets returns the names of the buckets visible in projectID.
	ListBuckets(ctx context.Context, projectID string) ([]string, error)

	// ListBlobs returns at most maxResults objects in bucket whose names start with
	// prefix. A maxResults of zero or less means no limit.
	ListBlobs(ctx context.Context, bucket, prefix string, maxResults int) ([]BlobInfo, error)

	// Close releases any resources held by the client.
	Close() error
}

type UploadRequest struct {
	// Bucket is the bucket the object is written to.
	Bucket string

	// Name is the object path within the bucket.
	Name string

	// Content is the data to be uploaded.
	Content io.Reader

	// ContentType is the MIME type of the content, e.g. "application/json".
	ContentType string

	// Metadata is attached to the object as custom key/value metadata.
	Metadata map[string]string

	// FailIfExists makes the write conditional on the object not existing.
	FailIfExists bool
}

// BlobInfo describes an object held in a bucket.
type BlobInfo struct {
	Bucket      string            `json:"bucket"`
	Name        string            `json:"name"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type"`
	Generation  int64             `json:"generation,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	// Updated is the zero value when the backend does not report it.
	Updated time.Time `json:"updated,omitzero"`
}

// ResourceURI returns the canonical gs://bucket/name identifier of the object.
func (b BlobInfo) ResourceURI() string {
	return ResourceURI(b.Bucket, b.Name)
}

// ResourceURI returns the canonical identifier for an object.
func ResourceURI(bucket, name string) string {
	return fmt.Sprintf("%s://%s/%s", Scheme, bucket, name)
}
