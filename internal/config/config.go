package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// GateDefaults holds the pipeline-wide gating thresholds used when a topic
// does not override them. The numbers are deliberately configuration, not
// constants: the thresholds have been retuned several times in production.
type GateDefaults struct {
	RelevanceFloor        int     `yaml:"relevance_floor"`
	CleanupRelevanceFloor int     `yaml:"cleanup_relevance_floor"`
	MinQualityScore       int     `yaml:"min_quality_score"`
	MinRelevanceScore     int     `yaml:"min_relevance_score"`
	MinBodyWordCount      int     `yaml:"min_body_word_count"`
	SimilarityThreshold   float64 `yaml:"similarity_threshold"`
	DedupWindowSize       int     `yaml:"dedup_window_size"`
}

// Config holds application configuration loaded from environment variables
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	Env         string
	LogLevel    string
	LogFormat   string

	// Tokens for the administrative and ingestion boundaries.
	AdminToken   string
	ScraperToken string

	// Generation worker boundary.
	GeneratorURL      string
	GeneratorSecret   string
	GeneratorStubMode bool

	// Notification collaborator (story ready/published webhooks).
	NotifierURL    string
	NotifierSecret string

	// Queue behavior.
	StallTimeout  time.Duration
	SweepSchedule string // cron spec for the periodic sweeps

	Gate GateDefaults
}

// Load reads configuration from environment variables, with gating defaults
// optionally overridden by a YAML file (GATE_DEFAULTS_FILE).
func Load() *Config {
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          getEnvWithDefault("REDIS_URL", "redis://localhost:6379/0"),
		Port:              getEnvWithDefault("PORT", "8080"),
		Env:               getEnvWithDefault("ENV", "development"),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvWithDefault("LOG_FORMAT", "text"),
		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		ScraperToken:      os.Getenv("SCRAPER_TOKEN"),
		GeneratorURL:      os.Getenv("GENERATOR_URL"),
		GeneratorSecret:   os.Getenv("GENERATOR_SECRET"),
		GeneratorStubMode: getEnvBool("GENERATOR_STUB_MODE", false),
		NotifierURL:       os.Getenv("NOTIFIER_URL"),
		NotifierSecret:    os.Getenv("NOTIFIER_SECRET"),
		StallTimeout:      getEnvDuration("QUEUE_STALL_TIMEOUT", 10*time.Minute),
		SweepSchedule:     getEnvWithDefault("SWEEP_SCHEDULE", "*/5 * * * *"),
		Gate:              DefaultGate(),
	}

	if path := os.Getenv("GATE_DEFAULTS_FILE"); path != "" {
		if err := loadGateDefaults(path, &cfg.Gate); err != nil {
			log.Printf("WARNING: failed to load gate defaults from %s: %v", path, err)
		}
	}

	if cfg.AdminToken == "" {
		cfg.AdminToken = "dev-admin-token-change-in-production"
		log.Println("WARNING: Using default ADMIN_TOKEN. Generate a secure token with: openssl rand -hex 32")
	}

	return cfg
}

// DefaultGate returns the baseline gating thresholds.
func DefaultGate() GateDefaults {
	return GateDefaults{
		RelevanceFloor:        20,
		CleanupRelevanceFloor: 5,
		MinQualityScore:       50,
		MinRelevanceScore:     5,
		MinBodyWordCount:      80,
		SimilarityThreshold:   0.6,
		DedupWindowSize:       200,
	}
}

func loadGateDefaults(path string, out *GateDefaults) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read gate defaults file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse gate defaults file: %w", err)
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
