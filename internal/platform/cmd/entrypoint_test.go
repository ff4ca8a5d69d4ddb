package cmd

import (
	"context"
	"flag"
	"testing"
)

type testConfig struct {
	DBPath string `env:"CMD_TEST_DB_PATH" envDefault:"data/signing.db"`
	Tick   string `env:"CMD_TEST_TICK" envDefault:"1m"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_DB_PATH", "env/signing.db")

	var cfg testConfig
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "db path")
	fs.StringVar(&cfg.Tick, "tick", cfg.Tick, "tick")

	if err := ParseArgs(fs, []string{"-tick", "30s"}); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if cfg.DBPath != "env/signing.db" {
		t.Fatalf("db path = %q, want env override", cfg.DBPath)
	}
	if cfg.Tick != "30s" {
		t.Fatalf("tick = %q, want flag override", cfg.Tick)
	}
}

func TestParseArgsRequiresFlagSet(t *testing.T) {
	if err := ParseArgs(nil, nil); err == nil {
		t.Fatal("expected flag parser error")
	}
}

func TestRunWithTelemetryValidatesInput(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected service name error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceScheduler, nil); err == nil {
		t.Fatal("expected run function error")
	}
}

func TestRunWithTelemetryExecutesRun(t *testing.T) {
	ran := false
	err := RunWithTelemetry(context.Background(), ServiceScheduler, func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("run with telemetry: %v", err)
	}
	if !ran {
		t.Fatal("expected run function to execute")
	}
}
