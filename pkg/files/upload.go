package files

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

// DefaultUploadConcurrency bounds UploadMany when no limit is given.
const DefaultUploadConcurrency = 4

// UploadFile uploads a local file. When opts.Name is empty the base name of
// path is used.
func (c *Client) UploadFile(ctx context.Context, path string, opts *UploadOptions) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidArgument)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("files: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidArgument, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("files: read %s: %w", path, err)
	}

	var o UploadOptions
	if opts != nil {
		o = *opts
		o.KeyValues = copyMap(opts.KeyValues)
	}
	if strings.TrimSpace(o.Name) == "" {
		o.Name = filepath.Base(path)
	}
	if o.ContentType == "" {
		o.ContentType = detectContentType(path, data)
	}
	return c.Upload(ctx, bytes.NewReader(data), &o)
}

// UploadResult pairs an input path with its upload outcome.
type UploadResult struct {
	Path string
	File *File
}

// UploadMany uploads paths with at most concurrency uploads in flight. The
// results keep the order of paths. The first failure cancels the remaining
// uploads and is returned. opts.Name is ignored so every file keeps its own
// base name.
func (c *Client) UploadMany(ctx context.Context, paths []string, opts *UploadOptions, concurrency int) ([]UploadResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no paths to upload", ErrInvalidArgument)
	}
	if concurrency <= 0 {
		concurrency = DefaultUploadConcurrency
	}

	results := make([]UploadResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			var o UploadOptions
			if opts != nil {
				o = *opts
			}
			o.Name = ""
			f, err := c.UploadFile(gctx, p, &o)
			if err != nil {
				return err
			}
			results[i] = UploadResult{Path: p, File: f}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// detectContentType prefers content sniffing and falls back to the file
// extension when sniffing only finds a generic type.
func detectContentType(path string, data []byte) string {
	mt := mimetype.Detect(data)
	if mt.Is("application/octet-stream") || mt.Is("text/plain") {
		if byExt := mimetype.Lookup(extensionType(path)); byExt != nil {
			return byExt.String()
		}
	}
	return mt.String()
}

var extTypes = map[string]string{
	".json": "application/json",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".html": "text/html",
	".svg":  "image/svg+xml",
}

func extensionType(path string) string {
	return extTypes[strings.ToLower(filepath.Ext(path))]
}
