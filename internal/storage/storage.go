// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xlog "reel-editor/internal/log"
)

var ErrNotConfigured = errors.New("S3 storage not yet configured - set STORAGE_TYPE=local or implement S3")

// Storage holds uploaded clip media. The returned URL becomes the src of
// a video, image or audio layer.
//
//	Today:    fileStorage, _ = storage.NewLocalStorage(...)
//	Tomorrow: fileStorage = storage.NewS3Storage(...)
type Storage interface {
	Upload(ctx context.Context, r io.Reader, filename, contentType string) (string, error)
}

// ── Local Storage ─────────────────────────────────────────────────────────────

type LocalStorage struct {
	UploadDir string
	BaseURL   string // e.g. "http://localhost:8083"
	log       zerolog.Logger
}

func NewLocalStorage(uploadDir, baseURL string, logger *zerolog.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{
		UploadDir: uploadDir,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		log:       xlog.Or(logger, "storage"),
	}, nil
}

// Upload stores r under a generated name and returns its public URL. The
// file appears only once it is complete and synced.
func (s *LocalStorage) Upload(ctx context.Context, r io.Reader, filename, contentType string) (string, error) {
	// A generated name rules out path traversal, collisions between users
	// and leaking the original filename.
	safeFilename := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.UploadDir, safeFilename)

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.log.Debug().Err(err).Str("file", safeFilename).Msg("cleanup pending upload")
		}
	}()

	n, err := io.Copy(pending, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("failed to commit file: %w", err)
	}

	s.log.Info().
		Str("file", safeFilename).
		Str("content_type", contentType).
		Int64("bytes", n).
		Msg("upload stored")
	return fmt.Sprintf("%s/uploads/%s", s.BaseURL, safeFilename), nil
}

// ctxReader stops a copy once ctx is done, e.g. when the client goes away.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// ── S3 Storage stub ───────────────────────────────────────────────────────────

type S3Storage struct {
	Bucket string
	Region string
}

func NewS3Storage(bucket, region string) *S3Storage {
	return &S3Storage{Bucket: bucket, Region: region}
}

// TODO(infra): implement with the AWS SDK v2 upload manager once the bucket
// is provisioned.
func (s *S3Storage) Upload(context.Context, io.Reader, string, string) (string, error) {
	return "", ErrNotConfigured
}
