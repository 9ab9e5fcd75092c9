package asset

import (
	"context"
	"fmt"
	"io"
)

// Disk is where uploaded assets live.
type Disk interface {
	Put(ctx context.Context, path string, r io.Reader, contentType string) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) bool
	URL(path string) string
}

type DiskConfig struct {
	Driver string

	LocalRoot string
	BaseURL   string

	S3Bucket   string
	S3Region   string
	S3Key      string
	S3Secret   string
	S3Endpoint string
}

func OpenDisk(ctx context.Context, cfg DiskConfig) (Disk, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalDisk(cfg.LocalRoot, cfg.BaseURL)
	case "s3":
		return NewS3Disk(ctx, cfg)
	default:
		return nil, fmt.Errorf("asset: unknown disk driver %q", cfg.Driver)
	}
}
