package server

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Addr != "" {
		t.Fatalf("expected empty addr, got %q", cfg.Addr)
	}
	if cfg.DBPath != "meldtable.sqlite" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.SnapshotInterval != 20 {
		t.Fatalf("expected default snapshot interval 20, got %d", cfg.SnapshotInterval)
	}
	if cfg.SnapshotRetention != 3 {
		t.Fatalf("expected default snapshot retention 3, got %d", cfg.SnapshotRetention)
	}
	if cfg.AIPollInterval != 500*time.Millisecond {
		t.Fatalf("expected default poll interval 500ms, got %v", cfg.AIPollInterval)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9001", "-addr", "127.0.0.1:9999", "-db", "games.sqlite"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.Port)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.DBPath != "games.sqlite" {
		t.Fatalf("expected db override, got %q", cfg.DBPath)
	}
}

func TestParseConfigEnv(t *testing.T) {
	t.Setenv("MELDTABLE_PORT", "7000")
	t.Setenv("MELDTABLE_AI_PERSONA", "personas/cautious.lua")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 7000 {
		t.Fatalf("expected env port 7000, got %d", cfg.Port)
	}
	if cfg.AIPersona != "personas/cautious.lua" {
		t.Fatalf("expected env persona path, got %q", cfg.AIPersona)
	}
}
