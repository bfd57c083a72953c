package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aurorae-haven/aurorae/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("AURORAE_HOME", home)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HomeDir != home {
		t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, home)
	}
	if want := filepath.Join(home, "aurorae.db"); cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Backup.Keep != 5 {
		t.Errorf("Backup.Keep = %d, want 5", cfg.Backup.Keep)
	}
	if cfg.MaxFilenameLength != 30 {
		t.Errorf("MaxFilenameLength = %d, want 30", cfg.MaxFilenameLength)
	}
}

func TestLoadFromFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("AURORAE_HOME", home)

	yaml := "log_level: debug\nbackup:\n  keep: 12\n  cron: \"0 3 * * *\"\n"
	if err := os.WriteFile(config.ConfigPath(home), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Backup.Keep != 12 {
		t.Errorf("Backup.Keep = %d, want 12", cfg.Backup.Keep)
	}
	if cfg.Backup.Cron != "0 3 * * *" {
		t.Errorf("Backup.Cron = %q", cfg.Backup.Cron)
	}
}

func TestEnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("AURORAE_HOME", home)
	t.Setenv("AURORAE_LOG_LEVEL", "warn")
	t.Setenv("AURORAE_BACKUP_KEEP", "3")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Backup.Keep != 3 {
		t.Errorf("Backup.Keep = %d, want 3", cfg.Backup.Keep)
	}
}

func TestFingerprintStable(t *testing.T) {
	home := t.TempDir()
	t.Setenv("AURORAE_HOME", home)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Fingerprint() != cfg.Fingerprint() {
		t.Error("fingerprint not stable across calls")
	}

	other := cfg
	other.Backup.Keep = 99
	if cfg.Fingerprint() == other.Fingerprint() {
		t.Error("fingerprint should change with config")
	}
}
