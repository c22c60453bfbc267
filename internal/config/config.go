package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the reminder assistant.
type Config struct {
	BindAddr        string
	ShutdownTimeout time.Duration

	Timezone string
	Location *time.Location

	ReconcileInterval time.Duration
	DispatchTimeout   time.Duration
	BeforeLead        time.Duration
	AfterLag          time.Duration
	HistoryWindow     int

	StatePath   string
	DatabaseURL string

	MetricsNamespace string
	AllowAnyOrigin   bool

	ExtractorMode string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		Timezone:          envOrDefault("APP_TIMEZONE", "Europe/Rome"),
		StatePath:         envOrDefault("APP_STATE_PATH", "memory.json"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "wibo"),
		ExtractorMode:     envOrDefault("EXTRACTOR_MODE", "auto"),
		OpenAIModel:       envOrDefault("OPENAI_MODEL", "gpt-4"),
		OpenAIBaseURL:     stringsTrimSpace("OPENAI_BASE_URL"),
		OpenAIAPIKey:      stringsTrimSpace("OPENAI_API_KEY"),
		DatabaseURL:       stringsTrimSpace("DATABASE_URL"),
		TwilioAccountSID:  stringsTrimSpace("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   stringsTrimSpace("TWILIO_AUTH_TOKEN"),
		TwilioFrom:        stringsTrimSpace("TWILIO_WHATSAPP_NUMBER"),
		ShutdownTimeout:   15 * time.Second,
		ReconcileInterval: time.Minute,
		DispatchTimeout:   5 * time.Second,
		BeforeLead:        time.Hour,
		AfterLag:          2 * time.Hour,
		HistoryWindow:     10,
		AllowAnyOrigin:    false,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconcileInterval, err = durationFromEnv("APP_RECONCILE_INTERVAL", cfg.ReconcileInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.DispatchTimeout, err = durationFromEnv("APP_DISPATCH_TIMEOUT", cfg.DispatchTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BeforeLead, err = durationFromEnv("APP_BEFORE_LEAD", cfg.BeforeLead)
	if err != nil {
		return Config{}, err
	}
	cfg.AfterLag, err = durationFromEnv("APP_AFTER_LAG", cfg.AfterLag)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindow, err = intFromEnv("APP_HISTORY_WINDOW", cfg.HistoryWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}

	if cfg.ReconcileInterval < time.Second {
		return Config{}, fmt.Errorf("APP_RECONCILE_INTERVAL must be at least 1s")
	}
	if cfg.DispatchTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_DISPATCH_TIMEOUT must be positive")
	}
	if cfg.BeforeLead <= 0 || cfg.AfterLag <= 0 {
		return Config{}, fmt.Errorf("APP_BEFORE_LEAD and APP_AFTER_LAG must be positive")
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("APP_HISTORY_WINDOW must be positive")
	}
	if strings.TrimSpace(cfg.StatePath) == "" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("APP_STATE_PATH must be set when DATABASE_URL is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
