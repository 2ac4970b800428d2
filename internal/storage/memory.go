package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryClient is a concurrency-safe in-memory Client implementation. It
// honours FailIfExists atomically and can be told to fail specific operations,
// which makes it suitable for exercising upload logic without a network.
type MemoryClient struct {
	mu         sync.RWMutex
	buckets    map[string]map[string]*memoryObject
	public     map[string]bool
	generation int64
	uploads    int

	// FailUpload, when set, is consulted before every write. A non-nil return
	// aborts the write with that error.
	FailUpload func(bucket, name string) error

	// FailExists, when set, is consulted before every existence check.
	FailExists func(bucket, name string) error

	// BeforeWrite, when set, runs after the content has been read but before
	// the object is committed. Tests use it to race a concurrent writer.
	BeforeWrite func(bucket, name string)
}

type memoryObject struct {
	info    BlobInfo
	content []byte
}

var _ Client = (*MemoryClient)(nil)

// NewMemoryClient creates a MemoryClient holding the given empty buckets.
func NewMemoryClient(buckets ...string) *MemoryClient {
	c := &MemoryClient{
		buckets: make(map[string]map[string]*memoryObject),
		public:  make(map[string]bool),
	}
	for _, b := range buckets {
		c.buckets[b] = make(map[string]*memoryObject)
	}
	return c
}

func (c *MemoryClient) BlobExists(_ context.Context, bucket, name string) (bool, error) {
	if c.FailExists != nil {
		if err := c.FailExists(bucket, name); err != nil {
			return false, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	objects, ok := c.buckets[bucket]
	if !ok {
		return false, fmt.Errorf("storage: %q: %w", bucket, ErrBucketNotFound)
	}
	_, ok = objects[name]
	return ok, nil
}

func (c *MemoryClient) UploadBlob(_ context.Context, req *UploadRequest) (*BlobInfo, error) {
	if c.FailUpload != nil {
		if err := c.FailUpload(req.Bucket, req.Name); err != nil {
			return nil, err
		}
	}

	content, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, fmt.Errorf("storage: upload read failed for %q: %w", req.Name, err)
	}

	if c.BeforeWrite != nil {
		c.BeforeWrite(req.Bucket, req.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	objects, ok := c.buckets[req.Bucket]
	if !ok {
		return nil, fmt.Errorf("storage: %q: %w", req.Bucket, ErrBucketNotFound)
	}
	if _, exists := objects[req.Name]; exists && req.FailIfExists {
		return nil, fmt.Errorf("storage: %q: %w", req.Name, ErrObjectExists)
	}

	c.generation++
	c.uploads++
	obj := &memoryObject{
		info: BlobInfo{
			Bucket:      req.Bucket,
			Name:        req.Name,
			Size:        int64(len(content)),
			ContentType: req.ContentType,
			Generation:  c.generation,
			Metadata:    maps.Clone(req.Metadata),
			Updated:     time.Now().UTC(),
		},
		content: content,
	}
	objects[req.Name] = obj
	delete(c.public, req.Bucket+"/"+req.Name)

	info := obj.info
	return &info, nil
}

func (c *MemoryClient) MakePublic(_ context.Context, bucket, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.buckets[bucket][name]; !ok {
		return "", fmt.Errorf("storage: failed to make %q public: object not found", name)
	}
	c.public[bucket+"/"+name] = true
	return PublicURL(bucket, name), nil
}

func (c *MemoryClient) ListBuckets(_ context.Context, _ string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.buckets))
	for name := range c.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *MemoryClient) ListBlobs(_ context.Context, bucket, prefix string, maxResults int) ([]BlobInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	objects, ok := c.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("storage: %q: %w", bucket, ErrBucketNotFound)
	}

	var blobs []BlobInfo
	for name, obj := range objects {
		if strings.HasPrefix(name, prefix) {
			blobs = append(blobs, obj.info)
		}
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Name < blobs[j].Name })
	if maxResults > 0 && len(blobs) > maxResults {
		blobs = blobs[:maxResults]
	}
	return blobs, nil
}

func (c *MemoryClient) Close() error {
	return nil
}

// Put stores an object directly, bypassing failure hooks. The bucket is
// created if needed.
func (c *MemoryClient) Put(bucket, name string, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.buckets[bucket]; !ok {
		c.buckets[bucket] = make(map[string]*memoryObject)
	}
	c.generation++
	c.buckets[bucket][name] = &memoryObject{
		info: BlobInfo{
			Bucket:     bucket,
			Name:       name,
			Size:       int64(len(content)),
			Generation: c.generation,
			Updated:    time.Now().UTC(),
		},
		content: bytes.Clone(content),
	}
}

// Content returns a copy of the object's bytes and whether it exists.
func (c *MemoryClient) Content(bucket, name string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	obj, ok := c.buckets[bucket][name]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.content), true
}

// Object returns the stored attributes of an object.
func (c *MemoryClient) Object(bucket, name string) (BlobInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	obj, ok := c.buckets[bucket][name]
	if !ok {
		return BlobInfo{}, false
	}
	return obj.info, true
}

// IsPublic reports whether MakePublic has been called for the object since it
// was last written.
func (c *MemoryClient) IsPublic(bucket, name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.public[bucket+"/"+name]
}

// Uploads returns the number of successful UploadBlob calls.
func (c *MemoryClient) Uploads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uploads
}
