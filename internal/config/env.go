package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envReader reads typed environment overrides. Values that fail to parse
// keep the current setting and are recorded so Validate can report them.
type envReader struct {
	errs []error
}

func (r *envReader) invalid(key, value, kind string) {
	r.errs = append(r.errs, fmt.Errorf("%s: invalid %s %q", key, kind, value))
}

func (r *envReader) getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (r *envReader) getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		r.invalid(key, value, "integer")
		return defaultValue
	}
	return intValue
}

func (r *envReader) getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		r.invalid(key, value, "boolean")
		return defaultValue
	}
	return boolValue
}

func (r *envReader) getEnvFloat64(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		r.invalid(key, value, "number")
		return defaultValue
	}
	return floatValue
}

// getEnvDuration accepts Go durations ("10s") or plain seconds ("10")
func (r *envReader) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	trimmed := strings.TrimSpace(value)
	if d, err := time.ParseDuration(trimmed); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(trimmed); err == nil {
		return time.Duration(secs) * time.Second
	}
	r.invalid(key, value, "duration")
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty items
func (r *envReader) getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
