package cmd

import (
	"context"
	"fmt"

	units "github.com/docker/go-units"

	"github.com/tomasbasham/gcs-upload/internal/storage"
	"github.com/tomasbasham/gcs-upload/internal/upload"
)

func (o *UploadOptions) runListBuckets(ctx context.Context, uploader *upload.Uploader, projectID string) error {
	buckets, err := uploader.ListBuckets(ctx, projectID)
	if err != nil {
		return fmt.Errorf("listing buckets: %w", err)
	}

	fmt.Fprintln(o.Out, "\nAvailable buckets:")
	for _, b := range buckets {
		fmt.Fprintf(o.Out, "  - %s\n", b)
	}
	return nil
}

func (o *UploadOptions) runListBlobs(ctx context.Context, uploader *upload.Uploader) error {
	blobs, err := uploader.ListBlobs(ctx, o.Bucket, o.Prefix, o.config.MaxResults)
	if err != nil {
		return fmt.Errorf("listing blobs: %w", err)
	}

	fmt.Fprintf(o.Out, "\nBlobs in %s://%s:\n", storage.Scheme, o.Bucket)
	for _, b := range blobs {
		fmt.Fprintf(o.Out, "  %s (%s)\n", b.Name, units.HumanSize(float64(b.Size)))
	}
	return nil
}
