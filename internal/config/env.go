package config

import (
	"os"
	"strings"
)

const (
	EnvChannel  = "DIRMON_CHANNEL"
	EnvLogLevel = "DIRMON_LOG_LEVEL"
)

// EnvOverrides returns config overrides taken from DIRMON_* variables.
func EnvOverrides() map[string]any {
	overrides := map[string]any{}
	if value, ok := os.LookupEnv(EnvChannel); ok && strings.TrimSpace(value) != "" {
		overrides[KeyChannel] = value
	}
	if value, ok := os.LookupEnv(EnvLogLevel); ok && strings.TrimSpace(value) != "" {
		overrides[KeyLogLevel] = value
	}
	return overrides
}
