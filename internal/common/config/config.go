package config

import (
	"os"
	"regexp"
	"time"

	"github.com/vitrinhq/vitrin/pkg/helper"
	"github.com/vitrinhq/vitrin/pkg/trace"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// VitrinConfig represents the service configuration
	VitrinConfig struct {
		Server    ServerConfig    `yaml:"server"`
		Logger    LoggerConfig    `yaml:"logger"`
		Storage   StorageConfig   `yaml:"storage"`
		Notifier  NotifierConfig  `yaml:"notifier"`
		Presence  PresenceConfig  `yaml:"presence"`
		Analytics AnalyticsConfig `yaml:"analytics"`
		Admin     AdminConfig     `yaml:"admin"`
		I18n      I18nConfig      `yaml:"i18n"`
		Metrics   MetricsConfig   `yaml:"metrics"`
		Tracing   trace.Config    `yaml:"tracing"`
	}

	// ServerConfig represents the HTTP server configuration
	ServerConfig struct {
		Port            int           `yaml:"port"`
		TrustedProxies  []string      `yaml:"trusted_proxies"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORS            CORSConfig    `yaml:"cors"`
	}

	// CORSConfig represents the cross-origin settings for the storefront origin
	CORSConfig struct {
		AllowOrigins     []string      `yaml:"allow_origins"`
		AllowMethods     []string      `yaml:"allow_methods"`
		AllowHeaders     []string      `yaml:"allow_headers"`
		AllowCredentials bool          `yaml:"allow_credentials"`
		MaxAge           time.Duration `yaml:"max_age"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// AnalyticsConfig controls the admin analytics projection
	AnalyticsConfig struct {
		TimeZone string `yaml:"time_zone"` // hour buckets are labelled in this zone
	}

	// AdminConfig represents the static admin credential and its token settings
	AdminConfig struct {
		Username       string    `yaml:"username"`
		Password       string    `yaml:"password"`        // plain text or a bcrypt hash
		SessionVersion string    `yaml:"session_version"` // bump to invalidate every issued token
		JWT            JWTConfig `yaml:"jwt"`
	}

	// JWTConfig represents the JWT configuration
	JWTConfig struct {
		SecretKey string        `yaml:"secret_key"`
		Duration  time.Duration `yaml:"duration"`
	}

	// I18nConfig represents the translation settings
	I18nConfig struct {
		DefaultLang string `yaml:"default_lang"`
		Path        string `yaml:"path"` // optional directory overriding the embedded bundles
	}

	// MetricsConfig represents the prometheus settings
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Path      string    `yaml:"path"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}
)

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*VitrinConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	data = resolveEnv(data)
	var cfg VitrinConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}
	cfg.ApplyDefaults()

	return &cfg, cfgPath, nil
}

// ApplyDefaults fills every zero value that has a sensible default
func (c *VitrinConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if len(c.Server.CORS.AllowMethods) == 0 {
		c.Server.CORS.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(c.Server.CORS.AllowHeaders) == 0 {
		c.Server.CORS.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Lang"}
	}
	if c.Server.CORS.MaxAge <= 0 {
		c.Server.CORS.MaxAge = 12 * time.Hour
	}

	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.Logger.Output == "" {
		c.Logger.Output = "stdout"
	}

	c.Storage.applyDefaults()
	c.Notifier.applyDefaults()
	c.Presence.applyDefaults()

	if c.Analytics.TimeZone == "" {
		c.Analytics.TimeZone = "Europe/Istanbul"
	}
	if c.Admin.SessionVersion == "" {
		c.Admin.SessionVersion = "v1"
	}
	if c.Admin.JWT.Duration <= 0 {
		c.Admin.JWT.Duration = 24 * time.Hour
	}
	if c.I18n.DefaultLang == "" {
		c.I18n.DefaultLang = "tr"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "vitrin"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "vitrin"
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
