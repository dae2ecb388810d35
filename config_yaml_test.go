package resque

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("RESQUE_TEST_REDIS_ADDR", "redis.internal:6380")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	contents := "redis:\n" +
		"  addr: \"${RESQUE_TEST_REDIS_ADDR}\"\n" +
		"  db: ${RESQUE_TEST_DB:-3}\n" +
		"worker:\n" +
		"  queues: [\"high\", \"low\"]\n" +
		"  interval: \"2s\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Fatalf("RedisAddr = %q, want %q", cfg.RedisAddr, "redis.internal:6380")
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("RedisDB = %d, want 3 (from the :- default)", cfg.RedisDB)
	}
	if len(cfg.Queues) != 2 || cfg.Queues[0] != "high" {
		t.Fatalf("Queues = %v, want [high low]", cfg.Queues)
	}
	if cfg.Interval != 2*time.Second {
		t.Fatalf("Interval = %v, want 2s", cfg.Interval)
	}
}

func TestLoadConfigSingleQueueString(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	contents := "worker:\n  queue: \"high, low\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Queues) != 2 || cfg.Queues[0] != "high" || cfg.Queues[1] != "low" {
		t.Fatalf("Queues = %v, want [high low]", cfg.Queues)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/path/config.yml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestExpandEnvVarsNoDefaultLeavesEmpty(t *testing.T) {
	os.Unsetenv("RESQUE_TEST_UNSET_VAR")
	got := string(expandEnvVars([]byte("value: ${RESQUE_TEST_UNSET_VAR}")))
	if got != "value: " {
		t.Fatalf("expandEnvVars = %q, want %q", got, "value: ")
	}
}
