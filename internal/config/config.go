package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Config holds all configuration for the datafetch application
type Config struct {
	// File system
	DataDir    string // user-provided root for boolq/ and glove/
	AbsDataDir string // resolved/absolute path
	DBPath     string // user-provided
	AbsDBPath  string // resolved/absolute path

	// Fetch behavior
	Workers         int           // concurrent fetch workers
	Timeout         time.Duration // per-request timeout; 0 disables
	VerifyChecksums bool          // enforce manifest SHA-256 digests when set

	// Install step
	PythonBin   string // Python interpreter used for the model install
	SpacyModel  string // spaCy model package name
	SkipInstall bool   // skip the model install step entirely

	// Logging
	LogLevel string // debug|info|warn|error

	// Validation & computed
	Version   string    // app version
	StartTime time.Time // when the app started
}

// New creates a Config with default values
func New() *Config {
	return &Config{
		DataDir:         ".",
		Workers:         1,
		Timeout:         0,
		VerifyChecksums: true,
		PythonBin:       "python3",
		SpacyModel:      "en_core_web_sm",
		LogLevel:        "info",
		StartTime:       time.Now(),
		Version:         "1.0.0",
	}
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	// Validate workers
	if c.Workers < 1 {
		c.Workers = 1
	}

	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %s (must be >= 0)", c.Timeout)
	}

	if strings.TrimSpace(c.PythonBin) == "" {
		return fmt.Errorf("python interpreter must not be empty")
	}
	if strings.TrimSpace(c.SpacyModel) == "" {
		return fmt.Errorf("spacy model name must not be empty")
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

	return nil
}

// ResolveDataDir expands the data directory path and resolves it to an absolute path.
// If empty, defaults to the current working directory.
func (c *Config) ResolveDataDir() error {
	if c.DataDir == "" {
		c.DataDir = "."
	}

	expanded, err := expandHome(c.DataDir)
	if err != nil {
		return err
	}
	c.DataDir = expanded

	abs, err := filepath.Abs(c.DataDir)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", c.DataDir, err)
	}
	c.AbsDataDir = abs

	return nil
}

// ResolveDBPath expands the ledger path and resolves it to an absolute path.
// If empty, defaults to the OS cache directory.
func (c *Config) ResolveDBPath() error {
	if c.DBPath == "" {
		c.DBPath = defaultCacheDBPath()
	}

	expanded, err := expandHome(c.DBPath)
	if err != nil {
		return err
	}
	c.DBPath = expanded

	abs, err := filepath.Abs(c.DBPath)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", c.DBPath, err)
	}
	c.AbsDBPath = abs

	return nil
}

func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand home directory: %w", err)
		}
		return home, nil
	}
	return path, nil
}

// String returns a pretty-printed representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf(`Config{
  Files:
    DataDir: %s (resolved: %s)
    DBPath: %s (resolved: %s)
  Fetch:
    Workers: %d
    Timeout: %s
    VerifyChecksums: %t
  Install:
    PythonBin: %s
    SpacyModel: %s
    SkipInstall: %t
  Logging:
    LogLevel: %s
  Meta:
    Version: %s
    StartTime: %s
}`, c.DataDir, c.AbsDataDir,
		c.DBPath, c.AbsDBPath,
		c.Workers, c.Timeout, c.VerifyChecksums,
		c.PythonBin, c.SpacyModel, c.SkipInstall,
		c.LogLevel,
		c.Version, c.StartTime.Format(time.RFC3339))
}

// Summary returns a one-line summary of key configuration
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"data_dir":     c.AbsDataDir,
		"db_path":      c.AbsDBPath,
		"workers":      c.Workers,
		"timeout":      c.Timeout.String(),
		"verify":       c.VerifyChecksums,
		"python":       c.PythonBin,
		"spacy_model":  c.SpacyModel,
		"skip_install": c.SkipInstall,
		"log_level":    c.LogLevel,
		"version":      c.Version,
	}
}

// defaultCacheDBPath returns the cross-platform default path for the SQLite ledger
// - Windows: %APPDATA%/datafetch/datafetch.db
// - Linux/macOS: $HOME/.cache/datafetch/datafetch.db
func defaultCacheDBPath() string {
	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "datafetch", "datafetch.db")
		}
		// Fallback to user home if APPDATA is not set
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "AppData", "Roaming", "datafetch", "datafetch.db")
		}
		// Last resort: current directory
		return "datafetch.db"
	}
	// Linux/macOS default cache location
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "datafetch", "datafetch.db")
	}
	// Fallback: place in working directory
	return filepath.Join("datafetch", "datafetch.db")
}
