package blob

import (
	"context"
	"fmt"

	"github.com/xiaot623/dailymission/internal/config"
	"github.com/xiaot623/dailymission/internal/logger"
)

// LocalRoute is where the HTTP server exposes a LocalStore directory.
const LocalRoute = "/photos"

// New builds the Store selected by cfg.BlobBackend.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendLocal, "":
		base := cfg.BlobPublicBaseURL
		if base == "" {
			base = LocalRoute
		}
		s, err := NewLocalStore(cfg.BlobDir, base)
		if err != nil {
			return nil, err
		}
		log.Info("local photo storage", "dir", cfg.BlobDir, "base_url", base)
		return s, nil
	case config.BlobBackendGCS:
		s, err := NewGCSStore(ctx, log, cfg.GCSBucket, cfg.BlobPublicBaseURL, cfg.GCSCredentials)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
