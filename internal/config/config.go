// Package config loads service configuration from the environment. A .env
// file in the working directory is loaded first when present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full service configuration.
type Config struct {
	ServiceName string
	Environment string

	// Ops probe server.
	OpsAddr      string
	OpsRateLimit int

	// Upstream endpoints.
	APIBaseURL   string
	RadarBaseURL string

	// Refresh cycle.
	CycleInterval time.Duration
	FetchTimeout  time.Duration
	BackoffBase   time.Duration
	BackoffMax    time.Duration

	// Aggregation.
	MaxRadarFrames      int
	MaxStationKm        float64
	FreshnessMultiplier float64
	RegionRollup        string

	// EntityGroups toggles entity adapters; empty means all.
	EntityGroups []string

	// Telemetry.
	OTLPEndpoint     string
	TelemetryEnabled bool
}

// FromEnv builds the configuration from environment variables, falling back
// to defaults suitable for local development.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		ServiceName: "sgweather",
		Environment: getEnv("SGW_ENV", "development"),

		OpsAddr:      getEnv("SGW_OPS_ADDR", ":8086"),
		OpsRateLimit: getInt("SGW_OPS_RATE_LIMIT", 60),

		APIBaseURL:   getEnv("SGW_API_BASE_URL", ""),
		RadarBaseURL: getEnv("SGW_RADAR_BASE_URL", ""),

		CycleInterval: getDuration("SGW_CYCLE_INTERVAL", time.Minute),
		FetchTimeout:  getDuration("SGW_FETCH_TIMEOUT", 15*time.Second),
		BackoffBase:   getDuration("SGW_BACKOFF_BASE", 30*time.Second),
		BackoffMax:    getDuration("SGW_BACKOFF_MAX", 10*time.Minute),

		MaxRadarFrames:      getInt("SGW_MAX_RADAR_FRAMES", 12),
		MaxStationKm:        getFloat("SGW_MAX_STATION_DISTANCE_KM", 10),
		FreshnessMultiplier: getFloat("SGW_FRESHNESS_MULTIPLIER", 2),
		RegionRollup:        getEnv("SGW_REGION_ROLLUP", "majority"),

		EntityGroups: getList("SGW_ENTITY_GROUPS"),

		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled: getEnv("OTEL_ENABLED", "") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
