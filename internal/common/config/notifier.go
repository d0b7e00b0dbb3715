package config

type (
	// NotifierConfig represents the configuration for the visitor change feed
	NotifierConfig struct {
		Role  string      `yaml:"role"` // receiver, sender, or both
		Type  string      `yaml:"type"` // local, redis or composite
		Redis RedisConfig `yaml:"redis"`
	}

	// RedisConfig represents the configuration for Redis-based notifier
	RedisConfig struct {
		ClusterType string `yaml:"cluster_type"`
		Addr        string `yaml:"addr"`
		MasterName  string `yaml:"master_name"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		Topic       string `yaml:"topic"`
	}
)

// NotifierRole represents the role of a notifier
type NotifierRole string

const (
	// RoleReceiver represents a notifier that can only receive updates
	RoleReceiver NotifierRole = "receiver"
	// RoleSender represents a notifier that can only send updates
	RoleSender NotifierRole = "sender"
	// RoleBoth represents a notifier that can both send and receive updates
	RoleBoth NotifierRole = "both"
)

func (c *NotifierConfig) applyDefaults() {
	if c.Type == "" {
		c.Type = "local"
	}
	if c.Role == "" {
		c.Role = string(RoleBoth)
	}
	if c.Redis.ClusterType == "" {
		c.Redis.ClusterType = "single"
	}
	if c.Redis.Topic == "" {
		c.Redis.Topic = "vitrin:visitors"
	}
}
