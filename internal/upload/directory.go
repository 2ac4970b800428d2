package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DirectoryRequest describes the upload of every matching file beneath a
// directory. ContentType, Metadata, MakePublic and Overwrite apply to every
// file.
type DirectoryRequest struct {
	Bucket string
	Source string

	// Prefix is prepended to each file's path relative to Source.
	Prefix string

	// Pattern is a shell glob matched against each file's base name.
	// Defaults to "*".
	Pattern string

	// Recursive descends into subdirectories.
	Recursive bool

	ContentType string
	Metadata    map[string]string
	MakePublic  bool
	Overwrite   bool
}

// UploadDirectory uploads every regular file under req.Source whose name
// matches req.Pattern. The returned batch holds exactly one result per
// discovered file, in discovery order. Errors uploading individual files are
// recorded in the batch; the returned error is only non-nil when the source
// cannot be enumerated, in which case nothing is uploaded.
func (u *Uploader) UploadDirectory(ctx context.Context, req *DirectoryRequest) (Batch, error) {
	root, err := filepath.Abs(req.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %w", ErrInvalidArgument, req.Source, err)
	}

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: source directory not found: %s", ErrNotFound, root)
	}
	if err != nil {
		return nil, fmt.Errorf("checking source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: source path is not a directory: %s", ErrInvalidArgument, root)
	}

	pattern := req.Pattern
	if pattern == "" {
		pattern = "*"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %w", ErrInvalidArgument, pattern, err)
	}

	log := u.log.WithFields(logrus.Fields{
		"bucket": req.Bucket,
		"source": root,
	})

	files, err := Discover(root, pattern, req.Recursive)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		log.Warnf("No files found matching pattern '%s'", pattern)
		return Batch{}, nil
	}

	log.WithField("files", len(files)).Info("Found files to upload")

	// Each worker owns one slot, so the batch keeps discovery order however
	// the uploads interleave.
	batch := make(Batch, len(files))

	var g errgroup.Group
	g.SetLimit(u.concurrency)

	for i, file := range files {
		g.Go(func() error {
			batch[i] = u.uploadEntry(ctx, req, root, file)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(batch)
	log.WithFields(logrus.Fields{
		"successful": summary.Successful,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	}).Info("Upload summary")

	return batch, nil
}

// uploadEntry uploads one discovered file and converts any error into an
// error result.
func (u *Uploader) uploadEntry(ctx context.Context, req *DirectoryRequest, root, file string) *Result {
	destination, err := Destination(root, file, req.Prefix)
	if err != nil {
		return errorResult(file, req.Bucket, "", fmt.Errorf("%w: %w", ErrInvalidArgument, err))
	}

	if err := ctx.Err(); err != nil {
		return errorResult(file, req.Bucket, destination, fmt.Errorf("upload not attempted: %w", err))
	}

	result, err := u.UploadFile(ctx, &Request{
		Bucket:      req.Bucket,
		Source:      file,
		Destination: destination,
		ContentType: req.ContentType,
		Metadata:    req.Metadata,
		MakePublic:  req.MakePublic,
		Overwrite:   req.Overwrite,
	})
	if err != nil {
		u.log.WithError(err).WithField("source", file).Error("Failed to upload")
		return errorResult(file, req.Bucket, destination, err)
	}
	return result
}

// Discover returns the regular files under root whose base name matches
// pattern. Without recursive only root's immediate entries are considered.
// Symbolic links are followed to decide whether an entry is a regular file
// but directories behind them are never descended into. Files are returned in
// lexical order within each directory.
func Discover(root, pattern string, recursive bool) ([]string, error) {
	var files []string

	consider := func(p string, d fs.DirEntry) error {
		matched, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return fmt.Errorf("%w: pattern %q: %w", ErrInvalidArgument, pattern, err)
		}
		if !matched {
			return nil
		}
		regular, err := isRegularFile(p, d)
		if err != nil {
			return err
		}
		if regular {
			files = append(files, p)
		}
		return nil
	}

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", root, err)
		}
		for _, e := range entries {
			if err := consider(filepath.Join(root, e.Name()), e); err != nil {
				return nil, err
			}
		}
		return files, nil
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root || d.IsDir() {
			return nil
		}
		return consider(p, d)
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory %s: %w", root, err)
	}
	return files, nil
}

func isRegularFile(p string, d fs.DirEntry) (bool, error) {
	if d.Type().IsRegular() {
		return true, nil
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false, nil
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		// Dangling link.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolving link %s: %w", p, err)
	}
	return info.Mode().IsRegular(), nil
}

// Destination derives the object name for file: its path relative to root,
// joined beneath prefix when one is given. Object names only recognise '/' as
// a separator, so backslashes are normalised too.
func Destination(root, file, prefix string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", fmt.Errorf("computing relative path: %w", err)
	}

	name := strings.ReplaceAll(filepath.ToSlash(rel), `\`, "/")
	prefix = strings.ReplaceAll(filepath.ToSlash(prefix), `\`, "/")
	if prefix != "" {
		name = path.Join(prefix, name)
	}
	return name, nil
}
