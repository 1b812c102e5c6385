package config

import (
	"errors"
	"time"
)

// S3 holds the optional object-storage mirror settings. The publisher is
// enabled when Bucket is non-empty.
type S3 struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Config holds runtime settings for a single tidyproxy run.
//
// Fields:
//   - Token: static TidyHQ access token, sent as a query parameter.
//   - FieldIDs: custom-field name → field id, e.g. "slack" → "abc-123".
//   - CacheExpiry: maximum snapshot age before a rebuild.
//   - BaseURL: API origin; overridable for tests.
//   - CachePath / ServeDir / LockPath: fixed relative paths of the
//     persisted snapshot, the output tree and the advisory lock.
type Config struct {
	Token       string
	FieldIDs    map[string]string
	CacheExpiry time.Duration
	BaseURL     string
	CachePath   string
	ServeDir    string
	LockPath    string

	// Force skips the lock check and rebuilds regardless of freshness.
	Force bool
	// Setup runs the interactive config bootstrap instead of a pull.
	Setup bool

	S3 S3
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.CacheExpiry = 24 * time.Hour
	c.BaseURL = "https://api.tidyhq.com"
	c.CachePath = "cache.json"
	c.ServeDir = "serve"
	c.LockPath = "pull.lock"
}

// Validate checks the keys a pull cannot run without.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("config: tidyhq.token is required")
	}
	if c.FieldIDs == nil {
		return errors.New("config: tidyhq.ids is required")
	}
	if c.CacheExpiry < 0 {
		return errors.New("config: cache_expiry must not be negative")
	}
	return nil
}

// Load constructs a Config, applies defaults, then overlays values from
// JSON (config.json, or the file named by -c/-config) and command-line
// flags. Later sources take precedence over earlier ones.
//
// In -setup mode a missing or invalid config file is tolerated, since the
// point of that mode is to create one.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	jsonErr := parseJson(cfg)

	if err := parseFlags(cfg); err != nil {
		return nil, err
	}

	if cfg.Setup {
		return cfg, nil
	}
	if jsonErr != nil {
		return nil, jsonErr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
