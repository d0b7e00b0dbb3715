package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type (
	// StorageConfig selects the document store behind the presence engine
	StorageConfig struct {
		Type     string             `yaml:"type"`     // memory, db or redis
		Database DatabaseConfig     `yaml:"database"` // database configuration for db type
		Redis    StorageRedisConfig `yaml:"redis"`    // redis configuration for redis type
	}

	// DatabaseConfig represents the database configuration
	DatabaseConfig struct {
		Type     string `yaml:"type"` // postgres, mysql or sqlite
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		SSLMode  string `yaml:"sslmode"`
	}

	// StorageRedisConfig represents the Redis configuration for document storage
	StorageRedisConfig struct {
		ClusterType string `yaml:"cluster_type"` // single, sentinel or cluster
		Addr        string `yaml:"addr"`         // comma or semicolon separated for cluster/sentinel
		MasterName  string `yaml:"master_name"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		Prefix      string `yaml:"prefix"`
	}
)

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	case "mysql":
		// clientFoundRows makes an unchanged UPDATE still report the matched row
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	case "sqlite":
		dir := filepath.Dir(c.DBName)
		if dir != "." && dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
		return c.DBName
	default:
		return ""
	}
}

func (c *StorageConfig) applyDefaults() {
	if c.Type == "" {
		c.Type = "memory"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.DBName == "" {
		c.Database.DBName = "./data/vitrin.db"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.ClusterType == "" {
		c.Redis.ClusterType = "single"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "vitrin"
	}
}
