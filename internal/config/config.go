package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	AirVisualAPIKey  string
	OpenMeteoEnabled bool

	GeocoderAPIKey   string
	GeocodeCacheSize int

	HTTPTimeout time.Duration

	// RefreshInterval controls how often the current view is refreshed.
	RefreshInterval time.Duration
	// PositionTimeout bounds how long the fetcher waits for backends.
	PositionTimeout time.Duration

	// Snapshot retention.
	StoreMaxHistory int           // max number of snapshots per location (0 = unlimited)
	StoreMaxAge     time.Duration // max age of snapshots (0 = unlimited)
	RedisAddr       string        // empty keeps history in memory

	// Device adapters.
	GPSDAddr        string
	Permissions     string
	SettingsEnvFile string
	Interactive     bool

	Port            string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment with sensible defaults. A .env
// file, or the settings file when one is configured, is loaded first.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	settingsFile := os.Getenv("SETTINGS_ENV_FILE")
	if settingsFile != "" {
		if err := godotenv.Overload(settingsFile); err != nil {
			return nil, fmt.Errorf("load SETTINGS_ENV_FILE: %w", err)
		}
	}

	cfg := &AppConfig{
		AirVisualAPIKey:  os.Getenv("AIRVISUAL_API_KEY"),
		OpenMeteoEnabled: EnvBool("OPENMETEO_ENABLED", true),
		GeocoderAPIKey:   os.Getenv("GOOGLE_GEOCODER_API_KEY"),
		GeocodeCacheSize: getenvInt("GEOCODE_CACHE_SIZE", 1000),
		StoreMaxHistory:  getenvInt("STORE_MAX_HISTORY", 96), // roughly 24h at 15-minute intervals
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		GPSDAddr:         os.Getenv("GPSD_ADDR"),
		Permissions:      os.Getenv("LOCATION_PERMISSIONS"),
		SettingsEnvFile:  settingsFile,
		Interactive:      EnvBool("INTERACTIVE", true),
		Port:             getenvDefault("PORT", "8080"),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		LogFormat:        getenvDefault("LOG_FORMAT", "json"),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"REFRESH_INTERVAL", "15m", &cfg.RefreshInterval},
		{"POSITION_TIMEOUT", "5s", &cfg.PositionTimeout},
		{"STORE_MAX_AGE", "24h", &cfg.StoreMaxAge},
		{"SHUTDOWN_TIMEOUT", "10s", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if cfg.AirVisualAPIKey == "" && !cfg.OpenMeteoEnabled {
		return nil, fmt.Errorf("no air quality provider: set AIRVISUAL_API_KEY or OPENMETEO_ENABLED")
	}

	return cfg, nil
}

// EnvBool reads a boolean flag at call time. Unset or unparsable values
// yield def.
func EnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
