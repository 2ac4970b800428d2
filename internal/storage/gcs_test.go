package storage

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestMapError(t *testing.T) {
	errOther := errors.New("connection refused")

	tests := []struct {
		name   string
		err    error
		wantIs error
	}{
		{
			name:   "precondition failed",
			err:    &googleapi.Error{Code: http.StatusPreconditionFailed, Message: "conditionNotMet"},
			wantIs: ErrObjectExists,
		},
		{
			name:   "wrapped precondition failed",
			err:    fmt.Errorf("googleapi: %w", &googleapi.Error{Code: http.StatusPreconditionFailed}),
			wantIs: ErrObjectExists,
		},
		{
			name:   "bucket missing",
			err:    storage.ErrBucketNotExist,
			wantIs: ErrBucketNotFound,
		},
		{
			name:   "forbidden passes through",
			err:    &googleapi.Error{Code: http.StatusForbidden, Message: "denied"},
			wantIs: nil,
		},
		{
			name:   "other errors pass through",
			err:    errOther,
			wantIs: errOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, got, tt.wantIs)
				return
			}
			assert.NotErrorIs(t, got, ErrObjectExists)
			assert.Equal(t, tt.err, got)
		})
	}
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/docs/a/b.pdf", PublicURL("docs", "a/b.pdf"))
	assert.Equal(t, "https://storage.googleapis.com/docs/step%201.png", PublicURL("docs", "step 1.png"))
}

func TestResourceURI(t *testing.T) {
	assert.Equal(t, "gs://docs/manuals/a.pdf", ResourceURI("docs", "manuals/a.pdf"))
}

func TestBlobInfo(t *testing.T) {
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	info := blobInfo(&storage.ObjectAttrs{
		Bucket:      "docs",
		Name:        "a.pdf",
		Size:        42,
		ContentType: "application/pdf",
		Generation:  7,
		Updated:     updated,
	})

	assert.Equal(t, &BlobInfo{
		Bucket:      "docs",
		Name:        "a.pdf",
		Size:        42,
		ContentType: "application/pdf",
		Generation:  7,
		Updated:     updated,
	}, info)
	assert.Equal(t, &BlobInfo{}, blobInfo(nil))
}
