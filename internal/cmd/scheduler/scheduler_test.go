package scheduler

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("scheduler", flag.ContinueOnError)
	t.Setenv("COUNTERSIGN_SCHEDULER_PORT", "9092")
	t.Setenv("COUNTERSIGN_SCHEDULER_DB_PATH", "/tmp/signing.db")

	cfg, err := ParseConfig(fs, []string{"-holder", "scheduler-e2e", "-warning-days", "5"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9092 {
		t.Fatalf("port = %d, want 9092", cfg.Port)
	}
	if cfg.DBPath != "/tmp/signing.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "/tmp/signing.db")
	}
	if cfg.Holder != "scheduler-e2e" {
		t.Fatalf("holder = %q, want %q", cfg.Holder, "scheduler-e2e")
	}
	if cfg.WarningDays != 5 {
		t.Fatalf("warning days = %d, want 5", cfg.WarningDays)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("scheduler", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8092 {
		t.Fatalf("port = %d, want 8092", cfg.Port)
	}
	if cfg.DBPath != "data/signing.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "data/signing.db")
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("poll interval = %s, want 30s", cfg.PollInterval)
	}
	if cfg.LeaseTTL != time.Minute {
		t.Fatalf("lease ttl = %s, want 1m", cfg.LeaseTTL)
	}
	if cfg.WarningDays != 3 {
		t.Fatalf("warning days = %d, want 3", cfg.WarningDays)
	}
}
