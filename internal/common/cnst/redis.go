package cnst

// Redis deployment modes understood by the storage and notifier clients
const (
	RedisClusterTypeSingle   = "single"
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
)
