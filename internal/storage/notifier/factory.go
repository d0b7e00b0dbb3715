package notifier

import (
	"context"
	"fmt"

	"github.com/vitrinhq/vitrin/internal/common/config"

	"go.uber.org/zap"
)

// Type represents the type of notifier
type Type string

const (
	// TypeLocal represents the in-process notifier
	TypeLocal Type = "local"
	// TypeRedis represents Redis-based notifier
	TypeRedis Type = "redis"
	// TypeComposite represents composite notifier
	TypeComposite Type = "composite"
)

// NewNotifier creates a new notifier based on the configuration
func NewNotifier(ctx context.Context, logger *zap.Logger, cfg *config.NotifierConfig) (Notifier, error) {
	role := config.NotifierRole(cfg.Role)
	if role == "" {
		role = config.RoleBoth
	}

	switch Type(cfg.Type) {
	case TypeLocal, "":
		return NewLocalNotifier(logger, role), nil
	case TypeRedis:
		return NewRedisNotifier(ctx, logger, &cfg.Redis, role)
	case TypeComposite:
		notifiers := []Notifier{NewLocalNotifier(logger, role)}
		if cfg.Redis.Addr != "" {
			redisNotifier, err := NewRedisNotifier(ctx, logger, &cfg.Redis, role)
			if err != nil {
				return nil, err
			}
			notifiers = append(notifiers, redisNotifier)
		}
		return NewCompositeNotifier(ctx, logger, notifiers...), nil
	default:
		return nil, fmt.Errorf("unknown notifier type: %s", cfg.Type)
	}
}
