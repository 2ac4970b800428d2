package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// publicHost serves objects that grant allUsers read access.
const publicHost = "storage.googleapis.com"

// GCSClient talks to Google Cloud Storage.
type GCSClient struct {
	client *storage.Client
}

var _ Client = (*GCSClient)(nil)

// NewGCSClient creates a GCSClient. opts are passed through to the underlying
// GCS client, allowing credential injection.
func NewGCSClient(ctx context.Context, opts ...option.ClientOption) (*GCSClient, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create GCS client: %w", err)
	}
	return &GCSClient{client: client}, nil
}

// BlobExists fetches the object attributes and reports whether it exists.
func (c *GCSClient) BlobExists(ctx context.Context, bucket, name string) (bool, error) {
	_, err := c.client.Bucket(bucket).Object(name).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	case errors.Is(err, storage.ErrBucketNotExist):
		return false, fmt.Errorf("storage: existence check for %q: %w", name, ErrBucketNotFound)
	default:
		return false, fmt.Errorf("storage: existence check for %q failed: %w", name, err)
	}
}

// UploadBlob streams content to GCS. With FailIfExists the write carries a
// DoesNotExist precondition (ifGenerationMatch=0), so an object created
// concurrently is never overwritten.
func (c *GCSClient) UploadBlob(ctx context.Context, req *UploadRequest) (*BlobInfo, error) {
	obj := c.client.Bucket(req.Bucket).Object(req.Name)
	if req.FailIfExists {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = req.ContentType
	if len(req.Metadata) > 0 {
		w.Metadata = req.Metadata
	}

	if _, err := io.Copy(w, req.Content); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("storage: upload write failed for %q: %w", req.Name, mapError(err))
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("storage: upload close failed for %q: %w", req.Name, mapError(err))
	}

	return blobInfo(w.Attrs()), nil
}

// MakePublic grants allUsers the reader role on the object.
func (c *GCSClient) MakePublic(ctx context.Context, bucket, name string) (string, error) {
	acl := c.client.Bucket(bucket).Object(name).ACL()
	if err := acl.Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return "", fmt.Errorf("storage: failed to make %q public: %w", name, mapError(err))
	}
	return PublicURL(bucket, name), nil
}

// ListBuckets pages through every bucket in projectID.
func (c *GCSClient) ListBuckets(ctx context.Context, projectID string) ([]string, error) {
	if projectID == "" {
		return nil, fmt.Errorf("storage: project id is required to list buckets")
	}

	var names []string
	it := c.client.Buckets(ctx, projectID)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: failed to list buckets: %w", err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// ListBlobs pages through objects in bucket until maxResults have been collected.
func (c *GCSClient) ListBlobs(ctx context.Context, bucket, prefix string, maxResults int) ([]BlobInfo, error) {
	query := &storage.Query{Prefix: prefix}
	if err := query.SetAttrSelection([]string{"Name", "Bucket", "Size", "ContentType", "Updated", "Generation"}); err != nil {
		return nil, fmt.Errorf("storage: invalid attribute selection: %w", err)
	}

	var blobs []BlobInfo
	it := c.client.Bucket(bucket).Objects(ctx, query)
	for maxResults <= 0 || len(blobs) < maxResults {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: failed to list objects in %q: %w", bucket, mapError(err))
		}
		blobs = append(blobs, *blobInfo(attrs))
	}
	return blobs, nil
}

func (c *GCSClient) Close() error {
	return c.client.Close()
}

// PublicURL returns the URL at which a publicly readable object is served.
func PublicURL(bucket, name string) string {
	u := &url.URL{Scheme: "https", Host: publicHost, Path: "/" + bucket + "/" + name}
	return u.String()
}

func blobInfo(attrs *storage.ObjectAttrs) *BlobInfo {
	if attrs == nil {
		return &BlobInfo{}
	}
	return &BlobInfo{
		Bucket:      attrs.Bucket,
		Name:        attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Generation:  attrs.Generation,
		Metadata:    attrs.Metadata,
		Updated:     attrs.Updated,
	}
}

// mapError translates GCS API errors into this package's sentinels. Anything
// unrecognised is returned unchanged.
func mapError(err error) error {
	if errors.Is(err, storage.ErrBucketNotExist) {
		return ErrBucketNotFound
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("%w: %s", ErrObjectExists, apiErr.Message)
	}
	return err
}
