package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get for a missing key
var ErrNotFound = errors.New("object not found")

// Archive stores moderation evidence. Keys are slash-separated paths such
// as evidence/<account>/<event>.txt.
type Archive interface {
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Config selects and configures an archive backend
type Config struct {
	Provider string // "s3" or "local"

	LocalPath string

	S3Endpoint  string // empty for AWS; set for R2 or MinIO
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// New builds the archive named by cfg.Provider
func New(ctx context.Context, cfg Config) (Archive, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3Archive(ctx, cfg)
	case "local", "":
		return NewLocalArchive(cfg.LocalPath)
	default:
		return nil, errors.New("unknown evidence storage provider: " + cfg.Provider)
	}
}
