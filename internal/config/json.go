package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Perth-Artifactory/tidyproxy/internal/flagx"
	"github.com/Perth-Artifactory/tidyproxy/internal/timex"
)

// DefaultPath is where the config file lives unless -c/-config says
// otherwise.
const DefaultPath = "config.json"

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It mirrors
// the original config.json layout: a "tidyhq" section with the token and
// the custom-field id map, a top-level cache_expiry, and an optional "s3"
// section for the serve-tree mirror.
//
// cache_expiry relies on timex.Duration so JSON can specify it either as
// integer seconds (86400) or as a duration string ("24h").
type JsonConfig struct {
	TidyHQ struct {
		Token string            `json:"token"`
		IDs   map[string]string `json:"ids"`
	} `json:"tidyhq"`
	CacheExpiry *timex.Duration `json:"cache_expiry,omitempty"`
	S3          *struct {
		Bucket          string `json:"bucket"`
		Prefix          string `json:"prefix"`
		Region          string `json:"region"`
		Endpoint        string `json:"endpoint"`
		AccessKeyID     string `json:"access_key_id"`
		SecretAccessKey string `json:"secret_access_key"`
	} `json:"s3,omitempty"`
}

// parseJson overlays cfg with values loaded from the JSON config file.
// A missing or unparseable file is an error: a pull cannot run without a
// token, and silently continuing would hit the API unauthenticated.
func parseJson(cfg *Config) error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w (create it with -setup)", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.Token = jc.TidyHQ.Token
	cfg.FieldIDs = jc.TidyHQ.IDs
	if jc.CacheExpiry != nil {
		cfg.CacheExpiry = jc.CacheExpiry.Duration
	}
	if jc.S3 != nil {
		cfg.S3 = S3{
			Bucket:          jc.S3.Bucket,
			Prefix:          jc.S3.Prefix,
			Region:          jc.S3.Region,
			Endpoint:        jc.S3.Endpoint,
			AccessKeyID:     jc.S3.AccessKeyID,
			SecretAccessKey: jc.S3.SecretAccessKey,
		}
	}
	return nil
}
