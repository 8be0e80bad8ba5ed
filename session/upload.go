package session

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"sagekit/s3"
)

const maxParallelUploads = 4

// UploadData uploads a local file, or every regular file under a local
// directory, to s3://<default bucket>/<keyPrefix>/. It returns the uri of the
// uploaded file, or of the prefix when path is a directory.
func (s Session) UploadData(ctx context.Context, localPath, keyPrefix string) (string, error) {
	keyPrefix = strings.Trim(keyPrefix, "/")
	if keyPrefix == "" {
		keyPrefix = "data"
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to upload data: %w", err)
	}
	if !info.IsDir() {
		key := path.Join(keyPrefix, filepath.Base(localPath))
		if err := s.uploadFile(ctx, localPath, key); err != nil {
			return "", err
		}
		return s3.URI(s.DefaultBucket, key), nil
	}
	if err := s.uploadDir(ctx, localPath, keyPrefix); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	return s3.URI(s.DefaultBucket, keyPrefix), nil
}

// uploadDir uploads the files under dir with at most maxParallelUploads
// in flight. The first failure cancels the remaining uploads.
func (s Session) uploadDir(ctx context.Context, dir, keyPrefix string) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(maxParallelUploads)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			return err
		}
		key := path.Join(keyPrefix, filepath.ToSlash(rel))
		g.Go(func() error {
			defer sem.Release(1)
			return s.uploadFile(gctx, p, key)
		})
		return nil
	})
	if gerr := g.Wait(); gerr != nil {
		return gerr
	}
	return err
}

func (s Session) uploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	s.Logger.Debug("uploading", zap.String("file", localPath), zap.String("key", key))
	return s.Storage.Upload(ctx, f, s.DefaultBucket, key)
}
