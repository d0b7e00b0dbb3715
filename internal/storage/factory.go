package storage

import (
	"context"
	"fmt"

	"github.com/vitrinhq/vitrin/internal/common/config"

	"go.uber.org/zap"
)

// NewStore creates a new store based on configuration
func NewStore(ctx context.Context, logger *zap.Logger, cfg *config.StorageConfig) (Store, error) {
	logger.Info("Initializing storage", zap.String("type", cfg.Type))
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(logger), nil
	case "db":
		return NewDBStore(logger, DatabaseType(cfg.Database.Type), cfg.Database.GetDSN())
	case "redis":
		return NewRedisStore(ctx, logger, &cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
