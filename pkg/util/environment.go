package util

import (
	"os"
	"strconv"
	"strings"
	"time"

	iso8601 "github.com/senseyeio/duration"
)

func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

func GetEnvInt(env map[string]string, key string, fallback int) int {
	if value, ok := env[key]; ok && value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}

	return fallback
}

func GetEnvFloat(env map[string]string, key string, fallback float64) float64 {
	if value, ok := env[key]; ok && value != "" {
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			return n
		}
	}

	return fallback
}

// GetEnvDuration accepts both Go (1m30s) and ISO8601 (PT1M30S) durations
func GetEnvDuration(env map[string]string, key string, fallback time.Duration) time.Duration {
	value, ok := env[key]
	if !ok || value == "" {
		return fallback
	}

	if d, err := ParseDuration(value); err == nil {
		return d
	}

	return fallback
}

// ParseDuration parses an ISO8601 duration, falling back to Go duration syntax
func ParseDuration(value string) (time.Duration, error) {
	if strings.HasPrefix(value, "P") {
		isoDuration, err := iso8601.ParseISO8601(value)
		if err != nil {
			return 0, err
		}

		// Shift from a fixed epoch so calendar units resolve consistently
		epoch := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
		return isoDuration.Shift(epoch).Sub(epoch), nil
	}

	return time.ParseDuration(value)
}
