// Package config loads NeuroSearch configuration from defaults, an
// optional TOML file, a .env file and the environment, in that order of
// increasing precedence.
package config
