// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Config holds configuration knobs for the view API, the catalog gateway
// and the backend simulator.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string

	CatalogBaseURL   string
	GatewayTimeout   time.Duration
	GatewayRateLimit float64
	GatewayBurst     int

	ViewWaitTimeout time.Duration

	BackendAddr     string
	BackendSeedFile string
	BackendLatency  time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatenv(key string, def float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment. Variables already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	return nil
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:  durenvs("SHUTDOWN_TIMEOUT", 15),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		CatalogBaseURL:   getenv("CATALOG_BASE_URL", "http://localhost:8081/api"),
		GatewayTimeout:   durenvms("GATEWAY_TIMEOUT_MS", 10000),
		GatewayRateLimit: floatenv("GATEWAY_RATE_LIMIT", 50),
		GatewayBurst:     atoienv("GATEWAY_BURST", 10),
		ViewWaitTimeout:  durenvms("VIEW_WAIT_TIMEOUT_MS", 5000),
		BackendAddr:      getenv("BACKEND_ADDR", ":8081"),
		BackendSeedFile:  getenv("BACKEND_SEED_FILE", ""),
		BackendLatency:   durenvms("BACKEND_LATENCY_MS", 0),
	}
}
