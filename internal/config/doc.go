// Package config loads application configuration from a YAML file
// overlaid with SHAREDBOX_* environment variables.
package config
