package source

import (
	"context"

	"zipup/internal/config"
)

// NewLoaderFromConfig creates a Loader whose S3 client is built from cfg on
// first use.
func NewLoaderFromConfig(cfg config.SourceConfig) *Loader {
	opts := S3Options{
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	}
	return NewLoader(cfg.MaxArchiveSize, func(ctx context.Context) (ObjectStore, error) {
		return NewS3Store(ctx, opts)
	})
}
