package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 0\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d; want 8080", cfg.Server.Port)
	}
	if cfg.Recognition.StrangerThreshold != 0.5 {
		t.Errorf("StrangerThreshold = %f; want 0.5", cfg.Recognition.StrangerThreshold)
	}
	if cfg.Attendance.Cooldown != 60*time.Second {
		t.Errorf("Cooldown = %s; want 60s", cfg.Attendance.Cooldown)
	}
	if cfg.Database.Enabled() {
		t.Error("database should be disabled without a host")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v; want info/json defaults", cfg.Logging)
	}
}

func TestLoadValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  api_key: secret
database:
  host: db.local
  name: attend
  user: u
  password: p
recognition:
  stranger_threshold: 0.35
attendance:
  cooldown: 2m
  snapshot_strangers: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.APIKey != "secret" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if !cfg.Database.Enabled() {
		t.Error("database should be enabled")
	}
	if dsn := cfg.Database.DSN(); dsn != "postgres://u:p@db.local:5432/attend?sslmode=disable" {
		t.Errorf("DSN = %s", dsn)
	}
	if cfg.Recognition.StrangerThreshold != 0.35 {
		t.Errorf("StrangerThreshold = %f; want 0.35", cfg.Recognition.StrangerThreshold)
	}
	if cfg.Attendance.Cooldown != 2*time.Minute {
		t.Errorf("Cooldown = %s; want 2m", cfg.Attendance.Cooldown)
	}
	if !cfg.Attendance.SnapshotStrangers {
		t.Error("SnapshotStrangers should be true")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ATTEND_SERVER_PORT", "7777")
	t.Setenv("ATTEND_COOLDOWN", "90s")
	t.Setenv("ATTEND_DB_HOST", "env-db")

	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d; want env override 7777", cfg.Server.Port)
	}
	if cfg.Attendance.Cooldown != 90*time.Second {
		t.Errorf("Cooldown = %s; want 90s", cfg.Attendance.Cooldown)
	}
	if cfg.Database.Host != "env-db" {
		t.Errorf("Database.Host = %s; want env-db", cfg.Database.Host)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}
