// Package config loads the run controller's environment-derived settings
// and named run profiles (YAML bundles of capability/policy defaults).
package config

import (
	"os"
	"strconv"
)

// Config holds the settings Load reads from the environment. cmd/omen and
// pkg/controller do not call Load.
type Config struct {
	RunID                uint64
	LogLevel             string
	MaxConcurrent        int
	DefaultToolTimeoutMs uint64
	EventLogDir          string
	ListenAddr           string
}

// Load reads Config from environment variables, falling back to safe
// defaults for local/dev use when a variable is unset or unparsable.
func Load() *Config {
	logLevel := os.Getenv("OMEN_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	eventLogDir := os.Getenv("OMEN_EVENT_LOG_DIR")
	if eventLogDir == "" {
		eventLogDir = "./runs"
	}

	listenAddr := os.Getenv("OMEN_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":7700"
	}

	return &Config{
		RunID:                parseUint(os.Getenv("OMEN_RUN_ID"), 0),
		LogLevel:             logLevel,
		MaxConcurrent:        int(parseUint(os.Getenv("OMEN_MAX_CONCURRENT"), 4)),
		DefaultToolTimeoutMs: parseUint(os.Getenv("OMEN_TOOL_TIMEOUT_MS"), 30_000),
		EventLogDir:          eventLogDir,
		ListenAddr:           listenAddr,
	}
}

func parseUint(s string, fallback uint64) uint64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
