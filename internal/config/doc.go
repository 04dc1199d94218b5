// Package config handles configuration loading for reqstore.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Anything the file leaves out keeps the value from Default.
//
// # Configuration File
//
// Locations (in order):
//
//  1. The --config flag
//  2. Path from the REQSTORE_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/reqstore/config.yaml
//
// A missing file is not an error for the CLI; it runs on defaults.
// Files ending in .toml are decoded with BurntSushi/toml, anything else
// with yaml.v3.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	bodies:
//	  s3:
//	    bucket: "${REQSTORE_BODY_BUCKET}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	events:
//	  ping_interval: "30s"
//
// # Example Configuration
//
//	database:
//	  path: "~/.local/share/reqstore/app.db"
//	  driver: "sqlite"
//
//	bodies:
//	  driver: "fs"
//
//	events:
//	  addr: "127.0.0.1:7717"
//	  buffer_size: 64
//	  ping_interval: "30s"
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
//	logging:
//	  level: "info"
//	  format: "text"
package config
