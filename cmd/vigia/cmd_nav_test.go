package main

import (
	"testing"
	"time"

	"github.com/otavio/vigia/internal/ce"
	"github.com/otavio/vigia/internal/config"
)

func TestNavLocation(t *testing.T) {
	loc := navLocation("/component_measures", "develop")
	if loc.Pathname != "/component_measures" || loc.Branch() != "develop" {
		t.Errorf("navLocation() = %+v", loc)
	}

	loc = navLocation("/dashboard", "")
	if loc.Branch() != "" {
		t.Errorf("expected no branch, got %q", loc.Branch())
	}
}

func TestNavSource_Server(t *testing.T) {
	cfg := &config.Config{HTTPTimeout: time.Second}

	src, err := navSource(cfg, "http://localhost:9000")
	if err != nil {
		t.Fatalf("navSource() error: %v", err)
	}
	if _, ok := src.tasks.(*ce.Client); !ok {
		t.Errorf("tasks = %T, want *ce.Client", src.tasks)
	}
}

func TestNavFlags(t *testing.T) {
	for _, name := range []string{"branch", "path", "server", "no-history"} {
		if navCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag on nav command", name)
		}
	}
}

func TestNavRequiresArg(t *testing.T) {
	rootCmd.SetArgs([]string{"nav"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected nav to fail without a component")
	}
}

func TestComponentSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"add <key>": false, "list": false, "show <key>": false, "rm <key>": false}
	for _, c := range componentCmd.Commands() {
		if _, ok := want[c.Use]; ok {
			want[c.Use] = true
		}
	}
	for use, found := range want {
		if !found {
			t.Errorf("expected 'component %s' to be registered", use)
		}
	}
}

func TestComponentAddRejectsBadQualifier(t *testing.T) {
	rootCmd.SetArgs([]string{"component", "add", "proj", "--qualifier", "XYZ"})
	defer func() { compAddQualifier = "TRK" }()
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected component add to reject an unknown qualifier")
	}
}

func TestOptionalAndOrDash(t *testing.T) {
	if optional("") != nil {
		t.Error("optional(\"\") should be nil")
	}
	if p := optional("x"); p == nil || *p != "x" {
		t.Error("optional(\"x\") should point at x")
	}
	if orDash(nil) != "—" || orDash(optional("a")) != "a" {
		t.Error("orDash mismatch")
	}
}

func TestResolveBranch_Explicit(t *testing.T) {
	if got := resolveBranch("release/1.2", false); got != "release/1.2" {
		t.Errorf("resolveBranch() = %q", got)
	}
	if got := resolveBranch("", true); got != "" {
		t.Errorf("resolveBranch(no-git) = %q, want empty", got)
	}
}

func TestRecentCommandFlags(t *testing.T) {
	for _, name := range []string{"clear", "rm", "json"} {
		if recentCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag on recent command", name)
		}
	}
}

func TestServeCommandFlags(t *testing.T) {
	if serveCmd.Flags().Lookup("addr") == nil {
		t.Error("expected --addr flag on serve command")
	}
}
