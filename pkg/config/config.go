package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the signal engine service.
// Model parameters (factor windows, weights, fill policy) stay per-request;
// these are only the service-level defaults and wiring.
type Config struct {
	Port string

	// Database
	DBPath string

	// Scorer weights file (YAML). Empty means built-in defaults.
	WeightsPath string

	// Batch computation
	ComputeWorkers int

	// Default simulation parameters applied when a request omits them.
	FillThreshold float64
	SlippageFrac  float64
	UnitPosition  float64
	InitialCash   float64
	WindowCap     int
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the service still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/backtests.db"),
		WeightsPath:    getEnv("WEIGHTS_PATH", ""),
		ComputeWorkers: getEnvInt("COMPUTE_WORKERS", 0),
		FillThreshold:  getEnvFloat("FILL_THRESHOLD", 0.5),
		SlippageFrac:   getEnvFloat("SLIPPAGE_FRAC", 0.0002),
		UnitPosition:   getEnvFloat("UNIT_POSITION", 1),
		InitialCash:    getEnvFloat("INITIAL_CASH", 10000),
		WindowCap:      getEnvInt("WINDOW_CAP", 0),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
