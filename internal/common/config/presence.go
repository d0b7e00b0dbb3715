package config

import "time"

type (
	// PresenceConfig represents the presence engine tuning
	PresenceConfig struct {
		StaleAfter     time.Duration    `yaml:"stale_after"`     // inactivity window before a visitor is stale
		CleanupDelay   time.Duration    `yaml:"cleanup_delay"`   // delay of the sweep scheduled by a registration
		SweepInterval  time.Duration    `yaml:"sweep_interval"`  // periodic sweep, negative disables it
		CleanupWorkers int              `yaml:"cleanup_workers"` // concurrent seal+delete tasks per sweep
		Enrichment     EnrichmentConfig `yaml:"enrichment"`
	}

	// EnrichmentConfig represents the public IP and geolocation lookups
	EnrichmentConfig struct {
		Disabled    bool          `yaml:"disabled"` // skip lookups, every visitor stays Bilinmiyor
		Timeout     time.Duration `yaml:"timeout"` // applied to each lookup separately
		IPURL       string        `yaml:"ip_url"`
		IPPath      string        `yaml:"ip_path"` // gjson path of the address in the IP response
		GeoURL      string        `yaml:"geo_url"` // %s is replaced with the address
		CityPath    string        `yaml:"city_path"`
		CountryPath string        `yaml:"country_path"`
		RegionPath  string        `yaml:"region_path"`
		RateLimit   float64       `yaml:"rate_limit"` // geolocation requests per second
		RateBurst   int           `yaml:"rate_burst"`
		Breaker     BreakerConfig `yaml:"breaker"`
	}

	// BreakerConfig represents the circuit breaker guarding each lookup endpoint
	BreakerConfig struct {
		MaxRequests      uint32        `yaml:"max_requests"`
		Interval         time.Duration `yaml:"interval"`
		Timeout          time.Duration `yaml:"timeout"`
		FailureThreshold uint32        `yaml:"failure_threshold"`
	}
)

func (c *PresenceConfig) applyDefaults() {
	if c.StaleAfter <= 0 {
		c.StaleAfter = 2 * time.Minute
	}
	if c.CleanupDelay <= 0 {
		c.CleanupDelay = time.Second
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
	if c.CleanupWorkers <= 0 {
		c.CleanupWorkers = 16
	}

	e := &c.Enrichment
	if e.Timeout <= 0 {
		e.Timeout = 3 * time.Second
	}
	if e.IPURL == "" {
		e.IPURL = "https://api.ipify.org?format=json"
	}
	if e.IPPath == "" {
		e.IPPath = "ip"
	}
	if e.GeoURL == "" {
		e.GeoURL = "https://ipapi.co/%s/json/"
	}
	if e.CityPath == "" {
		e.CityPath = "city"
	}
	if e.CountryPath == "" {
		e.CountryPath = "country_name"
	}
	if e.RegionPath == "" {
		e.RegionPath = "region"
	}
	if e.RateLimit <= 0 {
		e.RateLimit = 1
	}
	if e.RateBurst <= 0 {
		e.RateBurst = 5
	}
	if e.Breaker.MaxRequests == 0 {
		e.Breaker.MaxRequests = 3
	}
	if e.Breaker.Interval <= 0 {
		e.Breaker.Interval = time.Minute
	}
	if e.Breaker.Timeout <= 0 {
		e.Breaker.Timeout = 2 * time.Minute
	}
	if e.Breaker.FailureThreshold == 0 {
		e.Breaker.FailureThreshold = 5
	}
}
