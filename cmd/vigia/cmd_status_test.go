package main

import (
	"testing"
	"time"

	"github.com/otavio/vigia/internal/ce"
)

func TestStatusSymbol(t *testing.T) {
	tests := []struct {
		status ce.Status
		want   string
	}{
		{ce.StatusPending, "○"},
		{ce.StatusInProgress, "●"},
		{ce.StatusSuccess, "✓"},
		{ce.StatusFailed, "✗"},
		{ce.StatusCanceled, "⊘"},
		{"unknown", "?"},
		{"", "?"},
	}
	for _, tt := range tests {
		got := statusSymbol(tt.status)
		if got != tt.want {
			t.Errorf("statusSymbol(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestTruncateID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"short", "short"},
		{"3f6c1b9e", "3f6c1b9e"},
		{"3f6c1b9e-8a52-4c1d-9f0e-2b7d4a6e5c10", "3f6c1b9e"},
		{"", ""},
	}
	for _, tt := range tests {
		got := truncateID(tt.input)
		if got != tt.want {
			t.Errorf("truncateID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(nil); got != "—" {
		t.Errorf("formatTime(nil) = %q", got)
	}
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	if got := formatTime(&ts); got != "2025-01-02 03:04:05" {
		t.Errorf("formatTime() = %q", got)
	}
}

func TestStatusCommandFlags(t *testing.T) {
	if statusCmd.Flags().Lookup("json") == nil {
		t.Error("expected --json flag on status command")
	}
}

func TestStatusRequiresArg(t *testing.T) {
	rootCmd.SetArgs([]string{"status"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected status to fail without a component")
	}
}

func TestCancelRequiresArg(t *testing.T) {
	rootCmd.SetArgs([]string{"cancel"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected cancel to fail without a task id")
	}
}

func TestReclaimCommandFlags(t *testing.T) {
	if reclaimCmd.Flags().Lookup("minutes") == nil {
		t.Error("expected --minutes flag on reclaim command")
	}
}

func TestReclaimRejectsNonPositiveMinutes(t *testing.T) {
	rootCmd.SetArgs([]string{"reclaim", "--minutes", "0"})
	defer func() { reclaimMinutes = 30 }()
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected reclaim to reject --minutes 0")
	}
}
