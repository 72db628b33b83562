package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "db_path: /tmp/x.db\nlisten_addr: 0.0.0.0:9000\nsession_ttl: 30m\nmetrics: false\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.SessionTTL != 30*time.Minute || cfg.Metrics {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.ReportUser != "admin" {
		t.Fatalf("default lost: %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PROGRESS_MAP_DB_PATH":     "env.db",
		"PROGRESS_MAP_REPORT_USER": " maria ",
		"PROGRESS_MAP_SESSION_TTL": "1h",
		"PROGRESS_MAP_METRICS":     "false",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.DBPath != "env.db" || cfg.ReportUser != "maria" || cfg.SessionTTL != time.Hour || cfg.Metrics {
		t.Fatalf("cfg=%+v", cfg)
	}

	env["PROGRESS_MAP_SESSION_TTL"] = "soon"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Fatalf("expected bad duration error")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBPath = ""
	cfg.ListenAddr = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestVersionString(t *testing.T) {
	oldV, oldC, oldB := Version, Commit, BuildTime
	defer func() { Version, Commit, BuildTime = oldV, oldC, oldB }()

	Version, Commit, BuildTime = "1.2.0", "abc123", "2025-03-01"
	if got := VersionString(); got != "1.2.0 (abc123, built 2025-03-01)" {
		t.Fatalf("got %q", got)
	}
	Commit, BuildTime = "", ""
	if got := VersionString(); got != "1.2.0" {
		t.Fatalf("got %q", got)
	}
}
