package config

import (
	"os"
	"strconv"
	"time"

	"github.com/weft-dev/weft/internal/log"
)

// Environment variables recognized by ApplyEnv. WEFT_LOG_LEVEL and
// WEFT_LOG_SERVICE are read by internal/log directly.
const (
	EnvAddr           = "WEFT_ADDR"
	EnvResumeWindow   = "WEFT_RESUME_WINDOW"
	EnvMaxSessions    = "WEFT_MAX_SESSIONS"
	EnvMaxPerIP       = "WEFT_MAX_PER_IP"
	EnvEventRate      = "WEFT_EVENT_RATE"
	EnvEventBurst     = "WEFT_EVENT_BURST"
	EnvStateStore     = "WEFT_STATE_STORE"
	EnvStatePath      = "WEFT_STATE_PATH"
	EnvRedisAddr      = "WEFT_REDIS_ADDR"
	EnvClusterChannel = "WEFT_CLUSTER_CHANNEL"
	EnvGuideDir       = "WEFT_GUIDE_DIR"
)

// ApplyEnv overlays WEFT_* environment variables onto the config.
// LoadFile calls it automatically; call it directly only when building
// a Config without a file.
func (c *Config) ApplyEnv() {
	c.Live.Addr = envString(EnvAddr, c.Live.Addr)
	c.Live.ResumeWindow = envDuration(EnvResumeWindow, c.Live.ResumeWindow)
	c.Live.MaxSessions = envInt(EnvMaxSessions, c.Live.MaxSessions)
	c.Live.MaxPerIP = envInt(EnvMaxPerIP, c.Live.MaxPerIP)
	c.Live.EventRate = envFloat(EnvEventRate, c.Live.EventRate)
	c.Live.EventBurst = envInt(EnvEventBurst, c.Live.EventBurst)
	c.State.Store = envString(EnvStateStore, c.State.Store)
	c.State.Path = envString(EnvStatePath, c.State.Path)
	c.Cluster.Redis = envString(EnvRedisAddr, c.Cluster.Redis)
	c.Cluster.Channel = envString(EnvClusterChannel, c.Cluster.Channel)
	c.Guide.Dir = envString(EnvGuideDir, c.Guide.Dir)
}

// envString returns the value of key when set and non-empty.
func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// envInt parses an integer from the environment, keeping the fallback
// and warning on unparsable values.
func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid integer in environment variable, using default")
		return fallback
	}
	return n
}

// envFloat parses a float from the environment, keeping the fallback
// and warning on unparsable values.
func envFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid float in environment variable, using default")
		return fallback
	}
	return f
}

// envDuration accepts a Go duration string from the environment,
// keeping the fallback and warning on unparsable values.
func envDuration(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	if _, err := time.ParseDuration(v); err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid duration in environment variable, using default")
		return fallback
	}
	return v
}
