// Package upload decides what to send to object storage and records what
// happened. A single file produces one Result; a directory produces a Batch
// with one Result per discovered file, where a failure uploading one file
// never prevents the others from being attempted.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"time"

	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/tomasbasham/gcs-upload/internal/storage"
)

const defaultContentType = "application/octet-stream"

// Options configures an Uploader.
type Options struct {
	// Concurrency bounds the number of files a directory upload sends at
	// once. Values below 1 upload sequentially.
	Concurrency int

	// Now returns the time recorded on successful results. Defaults to
	// time.Now.
	Now func() time.Time
}

// Uploader uploads local files through a storage.Client.
type Uploader struct {
	client      storage.Client
	log         logrus.FieldLogger
	concurrency int
	now         func() time.Time
}

// New creates an Uploader backed by client.
func New(client storage.Client, log logrus.FieldLogger, opts Options) *Uploader {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Uploader{
		client:      client,
		log:         log.WithField("component", "uploader"),
		concurrency: concurrency,
		now:         now,
	}
}

// Request describes the upload of a single file.
type Request struct {
	Bucket string
	Source string

	// Destination is the object name. Defaults to the base name of Source.
	Destination string

	// ContentType defaults to a type inferred from the file extension.
	ContentType string

	Metadata   map[string]string
	MakePublic bool

	// Overwrite replaces an existing object. When false an existing object
	// is left untouched and the result is skipped.
	Overwrite bool
}

// UploadFile uploads one regular file. A destination that already exists
// while Overwrite is false yields a skipped result, not an error. Any failure
// reported by the storage client is returned wrapped in ErrTransport.
func (u *Uploader) UploadFile(ctx context.Context, req *Request) (*Result, error) {
	source, err := filepath.Abs(req.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %w", ErrInvalidArgument, req.Source, err)
	}

	info, err := os.Stat(source)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: source file not found: %s", ErrNotFound, source)
	}
	if err != nil {
		return nil, fmt.Errorf("checking source file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: source path is not a file: %s", ErrInvalidArgument, source)
	}

	destination := req.Destination
	if destination == "" {
		destination = filepath.Base(source)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = DetectContentType(source)
	}

	log := u.log.WithFields(logrus.Fields{
		"bucket":      req.Bucket,
		"destination": destination,
	})

	if !req.Overwrite {
		exists, err := u.client.BlobExists(ctx, req.Bucket, destination)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		if exists {
			log.Warn("Blob already exists, skipping")
			return skippedResult(source, req.Bucket, destination), nil
		}
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("opening source file: %w", err)
	}
	defer f.Close()

	resourceURI := storage.ResourceURI(req.Bucket, destination)
	log.Infof("Uploading: %s (%s)", filepath.Base(source), units.HumanSize(float64(info.Size())))
	log.Debugf("  -> %s", resourceURI)

	content := &countingReader{r: f}
	_, err = u.client.UploadBlob(ctx, &storage.UploadRequest{
		Bucket:       req.Bucket,
		Name:         destination,
		Content:      content,
		ContentType:  contentType,
		Metadata:     req.Metadata,
		FailIfExists: !req.Overwrite,
	})
	if !req.Overwrite && errors.Is(err, storage.ErrObjectExists) {
		// Created by someone else between the existence check and the write.
		log.Warn("Blob created concurrently, skipping")
		return skippedResult(source, req.Bucket, destination), nil
	}
	if err != nil {
		log.WithError(err).Error("Upload failed")
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	var publicURL string
	if req.MakePublic {
		publicURL, err = u.client.MakePublic(ctx, req.Bucket, destination)
		if err != nil {
			log.WithError(err).Error("Making blob public failed")
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}

	log.Info("Upload successful")

	return &Result{
		Status:      StatusSuccess,
		Source:      source,
		Destination: destination,
		Bucket:      req.Bucket,
		SizeBytes:   content.n,
		ContentType: contentType,
		ResourceURI: resourceURI,
		PublicURL:   publicURL,
		Timestamp:   u.now().UTC(),
	}, nil
}

// ListBuckets returns the bucket names visible in projectID.
func (u *Uploader) ListBuckets(ctx context.Context, projectID string) ([]string, error) {
	names, err := u.client.ListBuckets(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return names, nil
}

// ListBlobs returns up to maxResults objects in bucket under prefix.
func (u *Uploader) ListBlobs(ctx context.Context, bucket, prefix string, maxResults int) ([]storage.BlobInfo, error) {
	blobs, err := u.client.ListBlobs(ctx, bucket, prefix, maxResults)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return blobs, nil
}

// DetectContentType returns a MIME type based on file extension, falling back
// to application/octet-stream.
func DetectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return defaultContentType
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return defaultContentType
	}

	return ct
}

// countingReader records how many bytes were handed to the storage client.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
