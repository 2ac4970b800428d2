package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomasbasham/gcs-upload/internal/storage"
)

const testBucket = "assembly-docs"

// newTestUploader returns an Uploader over a fresh in-memory bucket whose
// clock advances one second per successful upload.
func newTestUploader(t *testing.T, opts Options) (*Uploader, *storage.MemoryClient, *test.Hook) {
	t.Helper()

	client := storage.NewMemoryClient(testBucket)
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	if opts.Now == nil {
		clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		opts.Now = func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}
	}

	return New(client, log, opts), client, hook
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUploadFile(t *testing.T) {
	u, client, _ := newTestUploader(t, Options{})
	src := writeFile(t, filepath.Join(t.TempDir(), "manual.pdf"), "%PDF-1.7 assembly steps")

	result, err := u.UploadFile(context.Background(), &Request{
		Bucket:    testBucket,
		Source:    src,
		Overwrite: true,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, src, result.Source)
	assert.Equal(t, "manual.pdf", result.Destination)
	assert.Equal(t, testBucket, result.Bucket)
	assert.Equal(t, int64(len("%PDF-1.7 assembly steps")), result.SizeBytes)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "gs://assembly-docs/manual.pdf", result.ResourceURI)
	assert.Empty(t, result.PublicURL)
	assert.False(t, result.Timestamp.IsZero())

	content, ok := client.Content(testBucket, "manual.pdf")
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.7 assembly steps", string(content))

	obj, _ := client.Object(testBucket, "manual.pdf")
	assert.Equal(t, "application/pdf", obj.ContentType)
}

func TestUploadFile_SizeMatchesFile(t *testing.T) {
	u, _, _ := newTestUploader(t, Options{})
	dir := t.TempDir()

	for _, size := range []int{0, 1, 4096, 1 << 20} {
		src := filepath.Join(dir, "blob.bin")
		require.NoError(t, os.WriteFile(src, make([]byte, size), 0o644))

		result, err := u.UploadFile(context.Background(), &Request{Bucket: testBucket, Source: src, Overwrite: true})
		require.NoError(t, err)

		info, err := os.Stat(src)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), result.SizeBytes)
	}
}

func TestUploadFile_ContentType(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		contentType string
		want        string
	}{
		{
			name: "inferred from extension",
			file: "data.json",
			want: "application/json",
		},
		{
			name: "no extension",
			file: "Makefile",
			want: "application/octet-stream",
		},
		{
			name: "unknown extension",
			file: "fixture.zzqx",
			want: "application/octet-stream",
		},
		{
			name:        "explicit overrides inference",
			file:        "data.json",
			contentType: "text/plain",
			want:        "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, _, _ := newTestUploader(t, Options{})
			src := writeFile(t, filepath.Join(t.TempDir(), tt.file), "{}")

			result, err := u.UploadFile(context.Background(), &Request{
				Bucket:      testBucket,
				Source:      src,
				ContentType: tt.contentType,
				Overwrite:   true,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.ContentType)
		})
	}
}

func TestUploadFile_Destination(t *testing.T) {
	u, client, _ := newTestUploader(t, Options{})
	src := writeFile(t, filepath.Join(t.TempDir(), "local.pdf"), "pdf")

	result, err := u.UploadFile(context.Background(), &Request{
		Bucket:      testBucket,
		Source:      src,
		Destination: "remote/path/file.pdf",
		Overwrite:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "remote/path/file.pdf", result.Destination)
	assert.Equal(t, "gs://assembly-docs/remote/path/file.pdf", result.ResourceURI)
	_, ok := client.Content(testBucket, "remote/path/file.pdf")
	assert.True(t, ok)
}

func TestUploadFile_SourceErrors(t *testing.T) {
	u, client, _ := newTestUploader(t, Options{})
	dir := t.TempDir()

	_, err := u.UploadFile(context.Background(), &Request{Bucket: testBucket, Source: filepath.Join(dir, "missing.pdf")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, Classify(err))

	_, err = u.UploadFile(context.Background(), &Request{Bucket: testBucket, Source: dir})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "not a file")

	assert.Zero(t, client.Uploads())
}

func TestUploadFile_SkipsExistingWithoutWriting(t *testing.T) {
	u, client, hook := newTestUploader(t, Options{})
	client.Put(testBucket, "manual.pdf", []byte("original"))
	src := writeFile(t, filepath.Join(t.TempDir(), "manual.pdf"), "replacement")

	result, err := u.UploadFile(context.Background(), &Request{
		Bucket:    testBucket,
		Source:    src,
		Overwrite: false,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, result.Status)
	assert.Equal(t, ReasonBlobExists, result.Reason)
	assert.Equal(t, "manual.pdf", result.Destination)
	assert.ErrorIs(t, result.Err, ErrConflict)

	content, _ := client.Content(testBucket, "manual.pdf")
	assert.Equal(t, "original", string(content))
	assert.Zero(t, client.Uploads())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestUploadFile_ConcurrentCreationIsSkipped(t *testing.T) {
	u, client, _ := newTestUploader(t, Options{})
	src := writeFile(t, filepath.Join(t.TempDir(), "manual.pdf"), "ours")

	// Another writer creates the object after the existence check passed.
	client.BeforeWrite = func(bucket, name string) {
		client.Put(bucket, name, []byte("theirs"))
	}

	result, err := u.UploadFile(context.Background(), &Request{
		Bucket:    testBucket,
		Source:    src,
		Overwrite: false,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, result.Status)

	content, _ := client.Content(testBucket, "manual.pdf")
	assert.Equal(t, "theirs", string(content))
}

func TestUploadFile_OverwriteReplaces(t *testing.T) {
	u, client, _ := newTestUploader(t, Options{})
	client.Put(testBucket, "manual.pdf", []byte("original"))
	src := writeFile(t, filepath.Join(t.TempDir(), "manual.pdf"), "replacement")

	result, err := u.UploadFile(context.Background(), &Request{
		Bucket:    testBucket,
		Source:    src,
		Overwrite: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)

	content, _ := client.Content(testBucket, "manual.pdf")
	assert.Equal(t, "replacement", string(content))
}

func TestUploadFile_Idempotent(t *testing.T) {
	u, _, _ := newTestUploader(t, Options{})
	src := writeFile(t, filepath.Join(t.TempDir(), "data.json"), `{"step": 1}`)
	req := &Request{Bucket: testBucket, Source: src, Overwrite: true}

	first, err := u.UploadFile(context.Background(), req)
	require.NoError(t, err)
	second, err := u.UploadFile(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, StatusSuccess, second.Status)
	assert.Equal(t, first.Destination, second.Destination)
	assert.Equal(t, first.ContentType, second.ContentType)
	assert.Equal(t, first.SizeBytes, second.SizeBytes)
	assert.True(t, second.Timestamp.After(first.Timestamp))
}

func TestUploadFile_MakePublicAndMetadata(t *testing.T) {
	u, client, _ := newTestUploader(t, Options{})
	src := writeFile(t, filepath.Join(t.TempDir(), "step 1.png"), "png")

	result, err := u.UploadFile(context.Background(), &Request{
		Bucket:     testBucket,
		Source:     src,
		Metadata:   map[string]string{"line": "7"},
		MakePublic: true,
		Overwrite:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://storage.googleapis.com/assembly-docs/step%201.png", result.PublicURL)
	assert.True(t, client.IsPublic(testBucket, "step 1.png"))

	obj, ok := client.Object(testBucket, "step 1.png")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"line": "7"}, obj.Metadata)
}

func TestUploadFile_StorageErrorsPropagate(t *testing.T) {
	errQuota := errors.New("quota exceeded")

	tests := []struct {
		name      string
		overwrite bool
		configure func(c *storage.MemoryClient)
	}{
		{
			name:      "upload failure",
			overwrite: true,
			configure: func(c *storage.MemoryClient) {
				c.FailUpload = func(string, string) error { return errQuota }
			},
		},
		{
			name:      "existence check failure",
			overwrite: false,
			configure: func(c *storage.MemoryClient) {
				c.FailExists = func(string, string) error { return errQuota }
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, client, _ := newTestUploader(t, Options{})
			tt.configure(client)
			src := writeFile(t, filepath.Join(t.TempDir(), "manual.pdf"), "pdf")

			result, err := u.UploadFile(context.Background(), &Request{
				Bucket:    testBucket,
				Source:    src,
				Overwrite: tt.overwrite,
			})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrTransport)
			assert.ErrorIs(t, err, errQuota)
			assert.Equal(t, KindTransport, Classify(err))
		})
	}
}

func TestUploadFile_UnknownBucket(t *testing.T) {
	u, _, _ := newTestUploader(t, Options{})
	src := writeFile(t, filepath.Join(t.TempDir(), "manual.pdf"), "pdf")

	_, err := u.UploadFile(context.Background(), &Request{Bucket: "missing", Source: src, Overwrite: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrBucketNotFound)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestListing(t *testing.T) {
	u, client, _ := newTestUploader(t, Options{})
	client.Put(testBucket, "docs/a.pdf", []byte("a"))
	client.Put(testBucket, "docs/b.pdf", []byte("bb"))
	client.Put(testBucket, "images/c.png", []byte("ccc"))

	buckets, err := u.ListBuckets(context.Background(), "manufacturing")
	require.NoError(t, err)
	assert.Equal(t, []string{testBucket}, buckets)

	blobs, err := u.ListBlobs(context.Background(), testBucket, "docs/", 100)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, "docs/a.pdf", blobs[0].Name)
	assert.Equal(t, int64(2), blobs[1].Size)
	assert.Equal(t, "gs://assembly-docs/docs/b.pdf", blobs[1].ResourceURI())

	blobs, err = u.ListBlobs(context.Background(), testBucket, "", 1)
	require.NoError(t, err)
	assert.Len(t, blobs, 1)

	_, err = u.ListBlobs(context.Background(), "missing", "", 10)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		path       string
		wantPrefix string
	}{
		{path: "results/config.json", wantPrefix: "application/json"},
		{path: "results/Makefile", wantPrefix: "application/octet-stream"},
		{path: "results/index.html", wantPrefix: "text/html"},
		{path: "results/manual.pdf", wantPrefix: "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Contains(t, DetectContentType(tt.path), tt.wantPrefix)
		})
	}
}
