package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_ConditionalWriteIsAtomic(t *testing.T) {
	c := NewMemoryClient("docs")

	const writers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []string
		conflicts int
	)

	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content := fmt.Sprintf("writer-%d", i)
			_, err := c.UploadBlob(context.Background(), &UploadRequest{
				Bucket:       "docs",
				Name:         "contended.txt",
				Content:      strings.NewReader(content),
				FailIfExists: true,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded = append(succeeded, content)
			case errors.Is(err, ErrObjectExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, succeeded, 1)
	assert.Equal(t, writers-1, conflicts)

	content, ok := c.Content("docs", "contended.txt")
	require.True(t, ok)
	assert.Equal(t, succeeded[0], string(content))
	assert.Equal(t, 1, c.Uploads())
}

func TestMemoryClient_Overwrite(t *testing.T) {
	c := NewMemoryClient("docs")
	c.Put("docs", "a.txt", []byte("old"))
	before, _ := c.Object("docs", "a.txt")

	info, err := c.UploadBlob(context.Background(), &UploadRequest{
		Bucket:      "docs",
		Name:        "a.txt",
		Content:     strings.NewReader("new"),
		ContentType: "text/plain",
		Metadata:    map[string]string{"k": "v"},
	})
	require.NoError(t, err)

	assert.Greater(t, info.Generation, before.Generation)
	assert.Equal(t, "text/plain", info.ContentType)
	content, _ := c.Content("docs", "a.txt")
	assert.Equal(t, "new", string(content))
}

func TestMemoryClient_MakePublicResetOnWrite(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient("docs")
	c.Put("docs", "a.txt", []byte("x"))

	u, err := c.MakePublic(ctx, "docs", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/docs/a.txt", u)
	assert.True(t, c.IsPublic("docs", "a.txt"))

	_, err = c.UploadBlob(ctx, &UploadRequest{Bucket: "docs", Name: "a.txt", Content: strings.NewReader("y")})
	require.NoError(t, err)
	assert.False(t, c.IsPublic("docs", "a.txt"))

	_, err = c.MakePublic(ctx, "docs", "missing.txt")
	assert.Error(t, err)
}

func TestMemoryClient_UnknownBucket(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	_, err := c.BlobExists(ctx, "nope", "a.txt")
	assert.ErrorIs(t, err, ErrBucketNotFound)

	_, err = c.UploadBlob(ctx, &UploadRequest{Bucket: "nope", Name: "a.txt", Content: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrBucketNotFound)

	_, err = c.ListBlobs(ctx, "nope", "", 0)
	assert.ErrorIs(t, err, ErrBucketNotFound)
}
