package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Config holds all configuration for the vidgrab application
type Config struct {
	// Server configuration
	Host string
	Port int
	Addr string // computed from Host:Port

	// File system
	ScratchDir    string // user-provided
	AbsScratchDir string // resolved/absolute path
	DBPath        string // user-provided
	AbsDBPath     string // resolved/absolute path

	// Extraction behavior
	YTDLPPath      string        // extraction tool binary; empty = resolve from PATH
	DownloadBudget time.Duration // wall-clock budget for buffered extractions

	// Logging
	LogLevel string // debug|info|warn|error

	// Validation & computed
	Version   string    // app version
	StartTime time.Time // when the app started
}

// New creates a Config with default values
func New() *Config {
	return &Config{
		Host:           "0.0.0.0",
		Port:           8080,
		DownloadBudget: 28 * time.Second,
		LogLevel:       "info",
		StartTime:      time.Now(),
		Version:        "1.0.0",
	}
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	// Validate port range
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}

	// Validate budget
	if c.DownloadBudget <= 0 {
		c.DownloadBudget = 28 * time.Second
	}
	if c.DownloadBudget < time.Second {
		return fmt.Errorf("invalid download budget: %s (must be at least 1s)", c.DownloadBudget)
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	c.LogLevel = strings.ToLower(c.LogLevel)
	valid := false
	for _, level := range validLevels {
		if c.LogLevel == level {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log level: %s (must be debug|info|warn|error)", c.LogLevel)
	}

	// Compute address
	c.Addr = c.ComputeAddr()

	return nil
}

// ResolveScratchDir expands the scratch directory path and resolves it to
// an absolute path. If empty, defaults to a vidgrab directory under the
// OS temp dir.
func (c *Config) ResolveScratchDir() error {
	if c.ScratchDir == "" {
		c.ScratchDir = filepath.Join(os.TempDir(), "vidgrab")
	}

	// Expand ~ if present
	if strings.HasPrefix(c.ScratchDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("expand home directory: %w", err)
		}
		c.ScratchDir = filepath.Join(home, c.ScratchDir[2:])
	}

	abs, err := filepath.Abs(c.ScratchDir)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", c.ScratchDir, err)
	}
	c.AbsScratchDir = abs

	return nil
}

// ResolveDBPath expands the database path and resolves it to an absolute path
// If empty, defaults to OS cache directory
func (c *Config) ResolveDBPath() error {
	if c.DBPath == "" {
		c.DBPath = defaultCacheDBPath()
	}

	// Expand ~ if present
	if strings.HasPrefix(c.DBPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("expand home directory: %w", err)
		}
		c.DBPath = filepath.Join(home, c.DBPath[2:])
	}

	abs, err := filepath.Abs(c.DBPath)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", c.DBPath, err)
	}
	c.AbsDBPath = abs

	return nil
}

// ComputeAddr returns the full server address as host:port
func (c *Config) ComputeAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Summary returns a one-line summary of key configuration
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"addr":            c.Addr,
		"scratch_dir":     c.AbsScratchDir,
		"db_path":         c.AbsDBPath,
		"ytdlp_path":      c.YTDLPPath,
		"download_budget": c.DownloadBudget.String(),
		"log_level":       c.LogLevel,
		"version":         c.Version,
	}
}

// defaultCacheDBPath returns the cross-platform default path for the SQLite DB
// - Windows: %APPDATA%/vidgrab/vidgrab.db
// - Linux/macOS: $HOME/.cache/vidgrab/vidgrab.db
func defaultCacheDBPath() string {
	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "vidgrab", "vidgrab.db")
		}
		// Fallback to user home if APPDATA is not set
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "AppData", "Roaming", "vidgrab", "vidgrab.db")
		}
		// Last resort: current directory
		return "vidgrab.db"
	}
	// Linux/macOS default cache location
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "vidgrab", "vidgrab.db")
	}
	// Fallback: place in working directory
	return filepath.Join("vidgrab", "vidgrab.db")
}
