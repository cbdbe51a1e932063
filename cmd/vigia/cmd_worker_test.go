package main

import (
	"testing"
	"time"

	"github.com/otavio/vigia/internal/config"
)

func TestWorkerSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"run": false, "spawn": false, "logs <worker-id>": false, "attach <worker-id>": false, "kill [worker-id]": false}
	for _, c := range workerCmd.Commands() {
		if _, ok := want[c.Use]; ok {
			want[c.Use] = true
		}
	}
	for use, found := range want {
		if !found {
			t.Errorf("expected 'worker %s' to be registered", use)
		}
	}
}

func TestWorkerFlags(t *testing.T) {
	if workerRunCmd.Flags().Lookup("id") == nil {
		t.Error("expected --id flag on worker run")
	}
	if workerRunCmd.Flags().Lookup("metrics-addr") == nil {
		t.Error("expected --metrics-addr flag on worker run")
	}
	if workerSpawnCmd.Flags().Lookup("count") == nil {
		t.Error("expected --count flag on worker spawn")
	}
	if workerLogsCmd.Flags().Lookup("lines") == nil {
		t.Error("expected --lines flag on worker logs")
	}
	if workerKillCmd.Flags().Lookup("all") == nil {
		t.Error("expected --all flag on worker kill")
	}
}

func TestWorkerLogsRequiresArg(t *testing.T) {
	rootCmd.SetArgs([]string{"worker", "logs"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected worker logs to fail without argument")
	}
}

func TestWorkerKillRequiresTarget(t *testing.T) {
	rootCmd.SetArgs([]string{"worker", "kill"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected worker kill to fail without an id or --all")
	}
}

func TestWorkerEnv(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL:        "postgres://env/vigia",
		WorkerPollInterval: 3 * time.Second,
		LogLevel:           "debug",
		LogFormat:          "json",
		AnalyzeCmd:         "make analyze",
		QualityGate:        "bugs>0",
	}

	env := workerEnv(cfg, "")
	if env["VIGIA_DATABASE_URL"] != "postgres://env/vigia" {
		t.Errorf("database url = %q", env["VIGIA_DATABASE_URL"])
	}
	if env["VIGIA_WORKER_POLL_INTERVAL"] != "3s" {
		t.Errorf("poll interval = %q", env["VIGIA_WORKER_POLL_INTERVAL"])
	}
	if env["VIGIA_ANALYZE_CMD"] != "make analyze" {
		t.Errorf("analyze cmd = %q", env["VIGIA_ANALYZE_CMD"])
	}
	if env["VIGIA_QUALITY_GATE"] != "bugs>0" {
		t.Errorf("quality gate = %q", env["VIGIA_QUALITY_GATE"])
	}

	env = workerEnv(&config.Config{DatabaseURL: "postgres://env/vigia"}, "postgres://flag/vigia")
	if env["VIGIA_DATABASE_URL"] != "postgres://flag/vigia" {
		t.Errorf("flag should win, got %q", env["VIGIA_DATABASE_URL"])
	}
	if _, ok := env["VIGIA_ANALYZE_CMD"]; ok {
		t.Error("empty analyze command should not be exported")
	}
}

func TestWorkersCommandFlags(t *testing.T) {
	if workersCmd.Flags().Lookup("json") == nil {
		t.Error("expected --json flag on workers command")
	}
}
