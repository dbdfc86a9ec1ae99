// Package config loads meetsched settings from defaults, an optional YAML
// config file, a .env file and MEETSCHED_-prefixed environment variables,
// in increasing order of precedence. Command-line flags bound through
// BindFlags take precedence over all of them.
package config
