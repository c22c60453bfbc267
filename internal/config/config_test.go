package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.Timezone != "Europe/Rome" {
		t.Fatalf("Timezone = %q, want %q", cfg.Timezone, "Europe/Rome")
	}
	if cfg.Location == nil || cfg.Location.String() != "Europe/Rome" {
		t.Fatalf("Location = %v, want Europe/Rome", cfg.Location)
	}
	if cfg.ReconcileInterval != time.Minute {
		t.Fatalf("ReconcileInterval = %v, want 1m", cfg.ReconcileInterval)
	}
	if cfg.BeforeLead != time.Hour || cfg.AfterLag != 2*time.Hour {
		t.Fatalf("gate offsets = (%v, %v), want (1h, 2h)", cfg.BeforeLead, cfg.AfterLag)
	}
	if cfg.HistoryWindow != 10 {
		t.Fatalf("HistoryWindow = %d, want 10", cfg.HistoryWindow)
	}
	if cfg.ExtractorMode != "auto" {
		t.Fatalf("ExtractorMode = %q, want %q", cfg.ExtractorMode, "auto")
	}
}

func TestLoadExplicitOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_RECONCILE_INTERVAL", "5s")
	t.Setenv("APP_BEFORE_LEAD", "10m")
	t.Setenv("APP_AFTER_LAG", "30m")
	t.Setenv("APP_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ReconcileInterval != 5*time.Second {
		t.Fatalf("ReconcileInterval = %v, want 5s", cfg.ReconcileInterval)
	}
	if cfg.BeforeLead != 10*time.Minute || cfg.AfterLag != 30*time.Minute {
		t.Fatalf("gate offsets = (%v, %v), want (10m, 30m)", cfg.BeforeLead, cfg.AfterLag)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("Location = %v, want UTC", cfg.Location)
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want timezone error")
	}
}

func TestLoadRejectsSubSecondInterval(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_RECONCILE_INTERVAL", "100ms")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want interval error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_TIMEZONE",
		"APP_RECONCILE_INTERVAL",
		"APP_DISPATCH_TIMEOUT",
		"APP_BEFORE_LEAD",
		"APP_AFTER_LAG",
		"APP_HISTORY_WINDOW",
		"APP_STATE_PATH",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"EXTRACTOR_MODE",
		"OPENAI_API_KEY",
		"OPENAI_MODEL",
		"OPENAI_BASE_URL",
		"DATABASE_URL",
		"TWILIO_ACCOUNT_SID",
		"TWILIO_AUTH_TOKEN",
		"TWILIO_WHATSAPP_NUMBER",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
