package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aurorae-haven/aurorae/internal/otel"
)

// BackupConfig controls automatic backup snapshots.
type BackupConfig struct {
	// Keep is the number of snapshots retained after trimming.
	Keep int `yaml:"keep"`
	// Cron is a 5-field cron expression for the snapshot scheduler.
	// Empty disables scheduled snapshots.
	Cron string `yaml:"cron"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	// DBPath is the SQLite database file. Relative paths resolve under HomeDir.
	DBPath string `yaml:"db_path"`
	// FlatDir is the BadgerDB directory for the legacy flat key-value store.
	FlatDir string `yaml:"flat_dir"`
	// ExportDir is where export bundles and markdown files are written.
	ExportDir string `yaml:"export_dir"`

	LogLevel string `yaml:"log_level"`

	// MaxFilenameLength bounds sanitized export filenames.
	MaxFilenameLength int `yaml:"max_filename_length"`

	Backup BackupConfig `yaml:"backup"`
	Otel   otel.Config  `yaml:"otel"`
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// HomeDir resolves the application home, honoring the AURORAE_HOME override.
func HomeDir() string {
	if override := os.Getenv("AURORAE_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".aurorae")
}

func defaultConfig() Config {
	return Config{
		DBPath:            "aurorae.db",
		FlatDir:           "flat",
		ExportDir:         "exports",
		LogLevel:          "info",
		MaxFilenameLength: 30,
		Backup: BackupConfig{
			Keep: 5,
		},
	}
}

// Load reads config.yaml from the home directory, applies env overrides and
// defaults, and ensures the home directory exists.
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create aurorae home: %w", err)
	}

	data, err := os.ReadFile(ConfigPath(cfg.HomeDir))
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = "aurorae.db"
	}
	if cfg.FlatDir == "" {
		cfg.FlatDir = "flat"
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MaxFilenameLength <= 0 {
		cfg.MaxFilenameLength = 30
	}
	if cfg.Backup.Keep <= 0 {
		cfg.Backup.Keep = 5
	}
	if !filepath.IsAbs(cfg.DBPath) {
		cfg.DBPath = filepath.Join(cfg.HomeDir, cfg.DBPath)
	}
	if !filepath.IsAbs(cfg.FlatDir) {
		cfg.FlatDir = filepath.Join(cfg.HomeDir, cfg.FlatDir)
	}
	if !filepath.IsAbs(cfg.ExportDir) {
		cfg.ExportDir = filepath.Join(cfg.HomeDir, cfg.ExportDir)
	}
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("AURORAE_DB_PATH"); raw != "" {
		cfg.DBPath = raw
	}
	if raw := os.Getenv("AURORAE_FLAT_DIR"); raw != "" {
		cfg.FlatDir = raw
	}
	if raw := os.Getenv("AURORAE_EXPORT_DIR"); raw != "" {
		cfg.ExportDir = raw
	}
	if raw := os.Getenv("AURORAE_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("AURORAE_BACKUP_KEEP"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.Backup.Keep = v
		}
	}
	if raw := os.Getenv("AURORAE_BACKUP_CRON"); raw != "" {
		cfg.Backup.Cron = raw
	}
}

// Fingerprint returns a stable hash of the active config, logged at startup
// so mismatched environments are easy to spot in the log file.
func (c Config) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "db=%s|flat=%s|export=%s|log=%s|keep=%d|cron=%s",
		c.DBPath, c.FlatDir, c.ExportDir, strings.ToLower(c.LogLevel),
		c.Backup.Keep, c.Backup.Cron)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}
