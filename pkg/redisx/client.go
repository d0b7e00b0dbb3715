// Package redisx builds the go-redis client shared by the storage backend and the notifier.
package redisx

import (
	"context"
	"fmt"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Options describes a single node, sentinel or cluster deployment
type Options struct {
	ClusterType string
	Addr        string // comma or semicolon separated
	MasterName  string
	Username    string
	Password    string
	DB          int
}

// NewClient creates a universal client and checks the connection
func NewClient(ctx context.Context, opts Options) (redis.UniversalClient, error) {
	addrs := utils.SplitByMultipleDelimiters(opts.Addr, ";", ",")
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis address is empty")
	}

	redisOptions := &redis.UniversalOptions{
		Addrs:    addrs,
		Username: opts.Username,
		Password: opts.Password,
	}
	if opts.ClusterType == cnst.RedisClusterTypeSentinel {
		redisOptions.MasterName = opts.MasterName
	}
	if opts.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		redisOptions.DB = opts.DB
	}
	client := redis.NewUniversalClient(redisOptions)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
