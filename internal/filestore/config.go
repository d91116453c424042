package filestore

import (
	"context"

	"github.com/buildtrack/buildtrack-backend/internal/config"
)

// FromConfig opens the store selected by cfg.Backend.
func FromConfig(ctx context.Context, cfg config.UploadConfig) (Store, error) {
	if cfg.Backend == config.UploadBackendS3 {
		return NewS3(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	}
	return NewLocal(cfg.Dir)
}
