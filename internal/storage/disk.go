package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// tempPrefix marks in-flight writes, which are hidden from listings.
const tempPrefix = ".gcs-upload-"

// LocalClient writes objects to a directory on the local filesystem. Each
// bucket is a subdirectory of the root and object names map onto relative
// paths beneath it. Custom metadata is not persisted, and content types are
// reported from the object name's extension.
type LocalClient struct {
	baseDir string
}

var _ Client = (*LocalClient)(nil)

// NewLocalClient creates a LocalClient that writes objects under baseDir. The
// directory is created if it does not already exist.
func NewLocalClient(baseDir string) (*LocalClient, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create local base directory %q: %w", baseDir, err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to resolve absolute path for %q: %w", baseDir, err)
	}
	return &LocalClient{baseDir: abs}, nil
}

func (c *LocalClient) BlobExists(_ context.Context, bucket, name string) (bool, error) {
	dest, err := c.objectPath(bucket, name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: failed to stat %q: %w", dest, err)
	}
	return info.Mode().IsRegular(), nil
}

// UploadBlob streams content into a temporary file beside the destination
// and only then commits it, so a failed write never leaves a partial object.
// With FailIfExists the commit is a hard link, which fails if the name is
// already taken; otherwise it is a rename over any existing object.
func (c *LocalClient) UploadBlob(_ context.Context, req *UploadRequest) (*BlobInfo, error) {
	dest, err := c.objectPath(req.Bucket, req.Name)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create directory for %q: %w", req.Name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), tempPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create temporary file for %q: %w", req.Name, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, req.Content)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("storage: failed to write file %q: %w", dest, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("storage: failed to set permissions on %q: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("storage: failed to write file %q: %w", dest, err)
	}

	if req.FailIfExists {
		err = os.Link(tmp.Name(), dest)
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("storage: %q: %w", req.Name, ErrObjectExists)
		}
	} else {
		err = os.Rename(tmp.Name(), dest)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: failed to commit file %q: %w", dest, err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to stat %q: %w", dest, err)
	}

	return &BlobInfo{
		Bucket:      req.Bucket,
		Name:        req.Name,
		Size:        n,
		ContentType: req.ContentType,
		Generation:  info.ModTime().UnixNano(),
		Metadata:    req.Metadata,
		Updated:     info.ModTime().UTC(),
	}, nil
}

// MakePublic has no access control to change locally; the returned URL is a
// file:// URL pointing to the written file.
func (c *LocalClient) MakePublic(_ context.Context, bucket, name string) (string, error) {
	dest, err := c.objectPath(bucket, name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dest); err != nil {
		return "", fmt.Errorf("storage: failed to make %q public: %w", name, err)
	}
	fileURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}
	return fileURL.String(), nil
}

// ListBuckets returns every subdirectory of the root. projectID is ignored.
func (c *LocalClient) ListBuckets(_ context.Context, _ string) ([]string, error) {
	entries, err := os.ReadDir(c.baseDir)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to list buckets: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (c *LocalClient) ListBlobs(_ context.Context, bucket, prefix string, maxResults int) ([]BlobInfo, error) {
	root, err := c.bucketPath(bucket)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: %q: %w", bucket, ErrBucketNotFound)
	}

	var blobs []BlobInfo
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		blobs = append(blobs, BlobInfo{
			Bucket:      bucket,
			Name:        name,
			Size:        info.Size(),
			ContentType: mime.TypeByExtension(path.Ext(name)),
			Updated:     info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to list objects in %q: %w", bucket, err)
	}

	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Name < blobs[j].Name })
	if maxResults > 0 && len(blobs) > maxResults {
		blobs = blobs[:maxResults]
	}
	return blobs, nil
}

func (c *LocalClient) Close() error {
	return nil
}

func (c *LocalClient) bucketPath(bucket string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("storage: invalid bucket name %q", bucket)
	}
	return filepath.Join(c.baseDir, bucket), nil
}

// objectPath maps an object name onto the filesystem, refusing names that
// would escape the bucket directory.
func (c *LocalClient) objectPath(bucket, name string) (string, error) {
	root, err := c.bucketPath(bucket)
	if err != nil {
		return "", err
	}
	clean := path.Clean("/" + name)
	if name == "" || clean == "/" {
		return "", fmt.Errorf("storage: invalid object name %q", name)
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}
