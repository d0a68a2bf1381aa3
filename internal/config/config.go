package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the SmartFuel service configuration.
type Config struct {
	HTTP struct {
		Transport string
		Host      string
		Port      int
	}

	DBPath string

	// Empty paths select the embedded rule pack and ontology.
	Rules struct {
		RulePackPath string
		OntologyPath string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Cache struct {
		Enabled   bool
		KeyPrefix string
		TTL       time.Duration
	}

	History struct {
		DefaultLimit int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from the environment, falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Transport = getEnv("TRANSPORT", "http")
	cfg.HTTP.Host = getEnv("HTTP_HOST", "0.0.0.0")
	cfg.HTTP.Port = getEnvInt("HTTP_PORT", 8011)

	cfg.DBPath = getEnv("DB_PATH", "/data/smartfuel.db")

	cfg.Rules.RulePackPath = getEnv("SMARTFUEL_RULES_PATH", "")
	cfg.Rules.OntologyPath = getEnv("SMARTFUEL_ONTOLOGY_PATH", "")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Cache.Enabled = getEnv("CACHE_ENABLED", "false") == "true"
	cfg.Cache.KeyPrefix = getEnv("CACHE_KEY_PREFIX", "smartfuel:guidance:")
	cfg.Cache.TTL = time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second

	cfg.History.DefaultLimit = getEnvInt("HISTORY_LIMIT", 20)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
