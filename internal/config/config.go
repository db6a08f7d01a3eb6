package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries everything both binaries need. Values come from defaults,
// then an optional YAML file, then environment variables (highest wins).
type Config struct {
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`

	// Broker options.
	Prefix     string        `yaml:"prefix"`
	Resolution time.Duration `yaml:"resolution"`
	Delay      time.Duration `yaml:"delay"`
	Factor     int           `yaml:"factor"`

	// Worker options.
	MaxInFlight int `yaml:"max_in_flight"`

	// API options.
	Port string `yaml:"port"`

	// Periodic submissions, file-config only.
	Schedules []Schedule `yaml:"schedules"`
}

// Schedule is a cron entry that submits Job on every firing.
type Schedule struct {
	Name string         `yaml:"name"`
	Spec string         `yaml:"spec"`
	Job  map[string]any `yaml:"job"`
}

func defaults() Config {
	return Config{
		RedisAddr:   "localhost:6379",
		RedisDB:     0,
		Prefix:      "async-job",
		Resolution:  10 * time.Second,
		Delay:       5 * time.Second,
		Factor:      2,
		MaxInFlight: 8,
		Port:        "8080",
	}
}

// Load builds the config. path may be empty; a missing file at a non-empty
// path is an error.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.Prefix = getEnv("JOB_PREFIX", cfg.Prefix)
	cfg.Resolution = getEnvDuration("SWEEP_RESOLUTION", cfg.Resolution)
	cfg.Delay = getEnvDuration("HEARTBEAT_DELAY", cfg.Delay)
	cfg.Factor = getEnvInt("HEARTBEAT_FACTOR", cfg.Factor)
	cfg.MaxInFlight = getEnvInt("MAX_IN_FLIGHT", cfg.MaxInFlight)
	cfg.Port = getEnv("PORT", cfg.Port)

	if cfg.Factor < 2 {
		return Config{}, fmt.Errorf("heartbeat factor must be >= 2, got %d", cfg.Factor)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		_, err := fmt.Sscanf(v, "%d", &n)
		if err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
