package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	ScanWorkers  int
	ScanTimeout  time.Duration
	PageCacheTTL time.Duration

	OpenAIKey            string
	ExtractionModel      string
	SemanticConfirmation bool
	EnrichAliases        bool

	// Settings holds the tier, provider and tuning tables. Defaults are
	// overlaid by CONFIG_FILE when present.
	Settings Settings
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Load() (Config, error) {
	cfg := Config{
		Env:                  getenv("APP_ENV", "development"),
		ListenAddr:           getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		KafkaBrokers:         splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:           getenv("KAFKA_TOPIC", "beacon.scan-events"),
		ScanWorkers:          getenvInt("SCAN_WORKERS", 2),
		ScanTimeout:          getenvDuration("SCAN_TIMEOUT", 10*time.Minute),
		PageCacheTTL:         getenvDuration("PAGE_CACHE_TTL", 24*time.Hour),
		OpenAIKey:            os.Getenv("OPENAI_API_KEY"),
		ExtractionModel:      getenv("EXTRACTION_MODEL", "gpt-4.1-mini"),
		SemanticConfirmation: getenvBool("SEMANTIC_CONFIRMATION", false),
		EnrichAliases:        getenvBool("ENRICH_ALIASES", true),
	}

	settings, err := LoadSettings(getenv("CONFIG_FILE", "config.yaml"))
	if err != nil {
		return cfg, fmt.Errorf("load settings: %w", err)
	}
	cfg.Settings = settings

	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}

// IsDev returns true if the environment is set to development.
func (c Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
