package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	c := New()
	if c.Host != "0.0.0.0" {
		t.Fatalf("host = %q", c.Host)
	}
	if c.Port != 8080 {
		t.Fatalf("port = %d", c.Port)
	}
	if c.DownloadBudget != 28*time.Second {
		t.Fatalf("budget = %s", c.DownloadBudget)
	}
	if c.LogLevel != "info" {
		t.Fatalf("log level = %q", c.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	c := New()
	if err := c.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if c.Addr != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", c.Addr)
	}
}

func TestValidate_BadPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		c := New()
		c.Port = port
		if err := c.Validate(); err == nil {
			t.Fatalf("port %d accepted", port)
		}
	}
}

func TestValidate_LogLevel(t *testing.T) {
	c := New()
	c.LogLevel = "WARN"
	if err := c.Validate(); err != nil {
		t.Fatalf("uppercase level rejected: %v", err)
	}
	if c.LogLevel != "warn" {
		t.Fatalf("level not normalized: %q", c.LogLevel)
	}

	c = New()
	c.LogLevel = "verbose"
	if err := c.Validate(); err == nil {
		t.Fatal("invalid level accepted")
	}
}

func TestValidate_BudgetDefaulted(t *testing.T) {
	c := New()
	c.DownloadBudget = 0
	if err := c.Validate(); err != nil {
		t.Fatalf("zero budget rejected: %v", err)
	}
	if c.DownloadBudget != 28*time.Second {
		t.Fatalf("budget = %s; want default", c.DownloadBudget)
	}

	c = New()
	c.DownloadBudget = 100 * time.Millisecond
	if err := c.Validate(); err == nil {
		t.Fatal("sub-second budget accepted")
	}
}

func TestResolveScratchDir(t *testing.T) {
	c := New()
	c.ScratchDir = t.TempDir()
	if err := c.ResolveScratchDir(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !filepath.IsAbs(c.AbsScratchDir) {
		t.Fatalf("not absolute: %q", c.AbsScratchDir)
	}
}

func TestResolveScratchDir_Default(t *testing.T) {
	c := New()
	if err := c.ResolveScratchDir(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(c.AbsScratchDir, "vidgrab") {
		t.Fatalf("default scratch dir = %q", c.AbsScratchDir)
	}
}

func TestResolveDBPath_Default(t *testing.T) {
	c := New()
	if err := c.ResolveDBPath(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !filepath.IsAbs(c.AbsDBPath) {
		t.Fatalf("not absolute: %q", c.AbsDBPath)
	}
	if !strings.HasSuffix(c.AbsDBPath, "vidgrab.db") {
		t.Fatalf("db path = %q", c.AbsDBPath)
	}
}

func TestSummary(t *testing.T) {
	c := New()
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	s := c.Summary()
	if s["addr"] != "0.0.0.0:8080" {
		t.Fatalf("summary addr = %v", s["addr"])
	}
	if s["download_budget"] != "28s" {
		t.Fatalf("summary budget = %v", s["download_budget"])
	}
}
