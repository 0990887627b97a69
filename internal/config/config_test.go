package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func runFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.String("base-token", "", "")
	flags.String("quote-token", "", "")
	flags.Uint32("rung-count", 10, "")
	flags.Uint32("take-profit-bps", 200, "")
	flags.String("base-rung-size", "", "")
	flags.String("listen", ":8080", "")
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", runFlags())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RungCount != 10 {
		t.Fatalf("rung count default: %d", cfg.RungCount)
	}
	if cfg.TakeProfitBps != 200 {
		t.Fatalf("take profit default: %d", cfg.TakeProfitBps)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen default: %s", cfg.ListenAddr)
	}
	if cfg.JournalPath != "./data/trades.jsonl" {
		t.Fatalf("journal default: %s", cfg.JournalPath)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level default: %s", cfg.LogLevel)
	}
}

func TestLoadFlagOverrides(t *testing.T) {
	flags := runFlags()
	if err := flags.Parse([]string{
		"--rpc", "http://localhost:8545",
		"--rung-count", "4",
		"--base-rung-size", "1000000000000000000",
	}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://localhost:8545" {
		t.Fatalf("rpc: %s", cfg.RPCURL)
	}
	if cfg.RungCount != 4 {
		t.Fatalf("rung count: %d", cfg.RungCount)
	}
	if cfg.BaseRungSize != "1000000000000000000" {
		t.Fatalf("base rung size: %s", cfg.BaseRungSize)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml", runFlags()); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
