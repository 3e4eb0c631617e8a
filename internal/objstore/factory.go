package objstore

import (
	"context"

	"github.com/forecastbench/forecastbench/internal/config"
)

// ForConfig selects the store backend for the active configuration:
// directory-backed when LOCAL_STORE_DIR is set (always under
// RUN_MODE=TEST), S3 otherwise.
func ForConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.LocalStoreDir != "" {
		return NewLocalStore(cfg.LocalStoreDir)
	}
	return NewS3Store(ctx, cfg.CloudRegion, cfg.Bucket)
}
