package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/common/config"
	"github.com/vitrinhq/vitrin/pkg/redisx"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisNotifier implements Notifier using Redis pub/sub, so every instance
// sharing the store also shares the live feed
type RedisNotifier struct {
	logger *zap.Logger
	client redis.UniversalClient
	topic  string
	role   config.NotifierRole
}

var _ Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier creates a new Redis-based notifier
func NewRedisNotifier(ctx context.Context, logger *zap.Logger, cfg *config.RedisConfig, role config.NotifierRole) (*RedisNotifier, error) {
	client, err := redisx.NewClient(ctx, redisx.Options{
		ClusterType: cfg.ClusterType,
		Addr:        cfg.Addr,
		MasterName:  cfg.MasterName,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
	})
	if err != nil {
		return nil, err
	}
	return NewRedisNotifierWithClient(logger, client, cfg.Topic, role), nil
}

// NewRedisNotifierWithClient wraps an existing client
func NewRedisNotifierWithClient(logger *zap.Logger, client redis.UniversalClient, topic string, role config.NotifierRole) *RedisNotifier {
	return &RedisNotifier{
		logger: logger.Named("notifier.redis"),
		client: client,
		topic:  topic,
		role:   role,
	}
}

// Watch implements Notifier.Watch. The subscription is confirmed before it returns.
func (r *RedisNotifier) Watch(ctx context.Context) (<-chan *Event, error) {
	if !r.CanReceive() {
		return nil, cnst.ErrNotReceiver
	}

	pubsub := r.client.Subscribe(ctx, r.topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.topic, err)
	}

	ch := make(chan *Event, watcherBuffer)
	go func() {
		defer close(ch)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					r.logger.Warn("failed to unmarshal event", zap.Error(err))
					continue
				}
				select {
				case ch <- &e:
				default:
					r.logger.Debug("watcher channel is full, skipping notification",
						zap.String("session_id", e.SessionID))
				}
			}
		}
	}()

	return ch, nil
}

// Notify implements Notifier.Notify
func (r *RedisNotifier) Notify(ctx context.Context, e *Event) error {
	if !r.CanSend() {
		return cnst.ErrNotSender
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, r.topic, data).Err()
}

// CanReceive returns true if the notifier can receive updates
func (r *RedisNotifier) CanReceive() bool {
	return r.role == config.RoleReceiver || r.role == config.RoleBoth
}

// CanSend returns true if the notifier can send updates
func (r *RedisNotifier) CanSend() bool {
	return r.role == config.RoleSender || r.role == config.RoleBoth
}

// Close releases the client
func (r *RedisNotifier) Close() error {
	return r.client.Close()
}
