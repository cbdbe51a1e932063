package config

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/vigia")
	t.Setenv("VIGIA_HISTORY_PATH", "/tmp/vigia-history.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/vigia" {
		t.Errorf("DatabaseURL = %q, want fallback from DATABASE_URL", cfg.DatabaseURL)
	}
	if cfg.Session != "vigia" {
		t.Errorf("Session = %q, want vigia", cfg.Session)
	}
	if cfg.HistorySize != 10 {
		t.Errorf("HistorySize = %d, want 10", cfg.HistorySize)
	}
	if cfg.RefreshInterval != 5*time.Second {
		t.Errorf("RefreshInterval = %v, want 5s", cfg.RefreshInterval)
	}
	if cfg.ServerAddr != ":9000" {
		t.Errorf("ServerAddr = %q, want :9000", cfg.ServerAddr)
	}
	if cfg.HistoryPath != "/tmp/vigia-history.db" {
		t.Errorf("HistoryPath = %q", cfg.HistoryPath)
	}
}

func TestLoad_PrefixedWinsOverBare(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://bare")
	t.Setenv("VIGIA_DATABASE_URL", "postgres://prefixed")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://prefixed" {
		t.Errorf("DatabaseURL = %q, want prefixed value", cfg.DatabaseURL)
	}
}

func TestLoad_DefaultHistoryPath(t *testing.T) {
	t.Setenv("VIGIA_HISTORY_PATH", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !strings.HasSuffix(cfg.HistoryPath, "history.db") {
		t.Errorf("HistoryPath = %q, want a history.db default", cfg.HistoryPath)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad log level", "VIGIA_LOG_LEVEL", "verbose"},
		{"bad log format", "VIGIA_LOG_FORMAT", "xml"},
		{"history too large", "VIGIA_HISTORY_SIZE", "1000"},
		{"history zero", "VIGIA_HISTORY_SIZE", "0"},
		{"bad server url", "VIGIA_SERVER_URL", "not a url"},
		{"unparseable duration", "VIGIA_REFRESH_INTERVAL", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q should fail", tt.key, tt.val)
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "component", "proj")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"component":"proj"`) {
		t.Errorf("expected JSON warn record, got: %s", out)
	}
}

func TestLoad_QualityGate(t *testing.T) {
	t.Setenv("VIGIA_QUALITY_GATE", "bugs>5, code_smells>100")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	g := cfg.Gate()
	if len(g.Conditions) != 2 || g.Conditions[0].Metric != "bugs" || g.Conditions[0].Threshold != 5 {
		t.Errorf("Gate() = %+v", g)
	}
}

func TestLoad_InvalidQualityGate(t *testing.T) {
	t.Setenv("VIGIA_QUALITY_GATE", "coverage<80")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject an unknown gate metric")
	}
}
