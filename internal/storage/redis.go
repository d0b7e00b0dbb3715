package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/common/config"
	"github.com/vitrinhq/vitrin/internal/visitor"
	"github.com/vitrinhq/vitrin/pkg/redisx"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const maxTxRetries = 32

// RedisStore keeps every document as JSON under {<prefix>}:<collection>:doc:<id> and
// a sorted set per collection scored by the field the collection is queried on.
// The hash tag keeps documents and indexes in one cluster slot so MULTI and MGET work.
type RedisStore struct {
	logger  *zap.Logger
	client  redis.UniversalClient
	active  *redisActive
	history *redisHistory
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and returns the store
func NewRedisStore(ctx context.Context, logger *zap.Logger, cfg *config.StorageRedisConfig) (*RedisStore, error) {
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
	return NewRedisStoreWithClient(logger, client, cfg.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(logger *zap.Logger, client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "vitrin"
	}
	logger = logger.Named("storage.redis")
	tag := "{" + prefix + "}:"
	return &RedisStore{
		logger: logger,
		client: client,
		active: &redisActive{redisCollection{
			logger: logger,
			client: client,
			prefix: tag + cnst.CollectionActive + ":doc:",
			index:  tag + cnst.CollectionActive + ":index",
		}},
		history: &redisHistory{redisCollection{
			logger: logger,
			client: client,
			prefix: tag + cnst.CollectionHistory + ":doc:",
			index:  tag + cnst.CollectionHistory + ":index",
		}},
	}
}

func (s *RedisStore) Active() ActiveRepository   { return s.active }
func (s *RedisStore) History() HistoryRepository { return s.history }
func (s *RedisStore) Close() error               { return s.client.Close() }

type redisCollection struct {
	logger *zap.Logger
	client redis.UniversalClient
	prefix string
	index  string
}

func (c *redisCollection) key(id string) string { return c.prefix + id }

func (c *redisCollection) put(ctx context.Context, id string, score int64, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.key(id), data, 0)
		pipe.ZAdd(ctx, c.index, redis.Z{Score: float64(score), Member: id})
		return nil
	})
	return err
}

func (c *redisCollection) get(ctx context.Context, id string, doc any) error {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, doc)
}

// update runs an optimistic WATCH/MULTI read-modify-write; mutate returns the new index score
func (c *redisCollection) update(ctx context.Context, id string, newDoc func() any, mutate func(doc any) int64) error {
	key := c.key(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		doc := newDoc()
		if err := json.Unmarshal(data, doc); err != nil {
			return err
		}
		score := mutate(doc)
		out, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			pipe.ZAdd(ctx, c.index, redis.Z{Score: float64(score), Member: id})
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := c.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: %w", key, redis.TxFailedErr)
}

func (c *redisCollection) delete(ctx context.Context, id string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.key(id))
		pipe.ZRem(ctx, c.index, id)
		return nil
	})
	return err
}

// deleteIf runs an optimistic WATCH/MULTI check-and-delete; check decodes the
// document and reports whether it may go
func (c *redisCollection) deleteIf(ctx context.Context, id string, check func(data []byte) (bool, error)) (bool, error) {
	key := c.key(id)
	var deleted bool
	txf := func(tx *redis.Tx) error {
		deleted = false
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		ok, err := check(data)
		if err != nil || !ok {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, c.index, id)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := c.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return deleted, err
	}
	return false, fmt.Errorf("delete %s: %w", key, redis.TxFailedErr)
}

// load fetches the documents of ids in order, dropping index entries whose document is gone
func (c *redisCollection) load(ctx context.Context, ids []string, decode func(data []byte) error) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return err
	}

	var orphans []any
	for i, val := range values {
		s, ok := val.(string)
		if !ok {
			orphans = append(orphans, ids[i])
			continue
		}
		if err := decode([]byte(s)); err != nil {
			c.logger.Warn("skipping undecodable document", zap.String("key", keys[i]), zap.Error(err))
		}
	}
	if len(orphans) > 0 {
		if err := c.client.ZRem(ctx, c.index, orphans...).Err(); err != nil {
			c.logger.Warn("failed to prune index", zap.String("index", c.index), zap.Error(err))
		}
	}
	return nil
}

type redisActive struct{ redisCollection }

func (r *redisActive) Put(ctx context.Context, v *visitor.Visitor) error {
	return r.put(ctx, v.SessionID, v.LastActivity.UnixMilli(), v)
}

func (r *redisActive) Get(ctx context.Context, sessionID string) (*visitor.Visitor, error) {
	var v visitor.Visitor
	if err := r.get(ctx, sessionID, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *redisActive) Update(ctx context.Context, sessionID string, fn func(v *visitor.Visitor)) error {
	return r.update(ctx, sessionID,
		func() any { return &visitor.Visitor{} },
		func(doc any) int64 {
			v := doc.(*visitor.Visitor)
			fn(v)
			v.SessionID = sessionID
			return v.LastActivity.UnixMilli()
		})
}

func (r *redisActive) Delete(ctx context.Context, sessionID string) error {
	return r.delete(ctx, sessionID)
}

func (r *redisActive) DeleteIf(ctx context.Context, sessionID string, cond func(v *visitor.Visitor) bool) (*visitor.Visitor, error) {
	var v *visitor.Visitor
	deleted, err := r.deleteIf(ctx, sessionID, func(data []byte) (bool, error) {
		v = &visitor.Visitor{}
		if err := json.Unmarshal(data, v); err != nil {
			return false, err
		}
		return cond == nil || cond(v), nil
	})
	if err != nil || !deleted {
		return nil, err
	}
	return v, nil
}

func (r *redisActive) List(ctx context.Context, q ActiveQuery) ([]*visitor.Visitor, error) {
	maxScore := "+inf"
	if !q.InactiveBefore.IsZero() {
		maxScore = "(" + strconv.FormatInt(q.InactiveBefore.UnixMilli(), 10)
	}
	ids, err := r.client.ZRevRangeByScore(ctx, r.index, &redis.ZRangeBy{Min: "-inf", Max: maxScore}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*visitor.Visitor, 0, len(ids))
	err = r.load(ctx, ids, func(data []byte) error {
		var v visitor.Visitor
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if q.Matches(&v) {
			out = append(out, &v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByLastActivity(out)
	return out, nil
}

type redisHistory struct{ redisCollection }

func (r *redisHistory) Put(ctx context.Context, rec *visitor.HistoryRecord) error {
	return r.put(ctx, rec.SessionID, rec.EnteredAt.UnixMilli(), rec)
}

func (r *redisHistory) Get(ctx context.Context, sessionID string) (*visitor.HistoryRecord, error) {
	var rec visitor.HistoryRecord
	if err := r.get(ctx, sessionID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *redisHistory) Update(ctx context.Context, sessionID string, fn func(r *visitor.HistoryRecord)) error {
	return r.update(ctx, sessionID,
		func() any { return &visitor.HistoryRecord{} },
		func(doc any) int64 {
			rec := doc.(*visitor.HistoryRecord)
			fn(rec)
			rec.SessionID = sessionID
			return rec.EnteredAt.UnixMilli()
		})
}

func (r *redisHistory) ListSince(ctx context.Context, since time.Time) ([]*visitor.HistoryRecord, error) {
	ids, err := r.client.ZRevRangeByScore(ctx, r.index, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*visitor.HistoryRecord, 0, len(ids))
	err = r.load(ctx, ids, func(data []byte) error {
		var rec visitor.HistoryRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		out = append(out, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByEnteredAt(out)
	return out, nil
}
