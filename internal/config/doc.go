// Package config loads runtime configuration for a tidyproxy run.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. JSON file (config.json, or the path given via -c/-config).
//  3. Command-line flags (-d, -force, -setup), which override earlier values.
//
// # JSON schema
//
//	{
//	  "tidyhq": {
//	    "token": "...",
//	    "ids": {"slack": "<field id>", "taiga": "<field id>"}
//	  },
//	  "cache_expiry": 86400,
//	  "s3": {
//	    "bucket": "tidyhq-mirror",
//	    "region": "us-east-1",
//	    "endpoint": "http://127.0.0.1:9000",
//	    "access_key_id": "...",
//	    "secret_access_key": "..."
//	  }
//	}
//
// cache_expiry accepts integer seconds or a duration string like "24h";
// absent, it defaults to 86400 seconds. The s3 section is optional and
// enables mirroring the serve tree to object storage.
//
// tidyhq.token and tidyhq.ids are required; Load returns an error before
// any remote or filesystem activity when they are missing. The -setup flag
// bypasses validation so a starter config can be created interactively.
package config
