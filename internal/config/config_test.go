package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func TestLoadWritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config was not written: %v", err)
	}
	if cfg.Compaction.Strategy != "trim-tool-results" {
		t.Errorf("unexpected default strategy: %q", cfg.Compaction.Strategy)
	}
	if cfg.Approval.DefaultPolicy != "ask" {
		t.Errorf("unexpected default policy: %q", cfg.Approval.DefaultPolicy)
	}
	if cfg.Executor.MaxConcurrent != 2 {
		t.Errorf("unexpected default concurrency: %d", cfg.Executor.MaxConcurrent)
	}

	// The written file must round-trip to the same values.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var reread Config
	if err := json.Unmarshal(data, &reread); err != nil {
		t.Fatalf("default config is not valid JSON: %v", err)
	}
	if reread.LLM.Model != cfg.LLM.Model {
		t.Errorf("round trip changed model: %q vs %q", reread.LLM.Model, cfg.LLM.Model)
	}
}

func TestLoadExistingFile(t *testing.T) {
	path := tempConfigPath(t)

	first, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	first.LogLevel = "debug"
	first.Compaction.TokenThreshold = 1234
	data, err := json.MarshalIndent(first, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected file value to win, got %q", cfg.LogLevel)
	}
	if cfg.Compaction.TokenThreshold != 1234 {
		t.Errorf("expected threshold 1234, got %d", cfg.Compaction.TokenThreshold)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("THREADKEEPER_DATA_DIR", "/tmp/tk-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("expected env api key, got %q", cfg.LLM.APIKey)
	}
	if cfg.DataDir != "/tmp/tk-env" {
		t.Errorf("expected env data dir, got %q", cfg.DataDir)
	}
	if cfg.DBPath() != filepath.Join("/tmp/tk-env", "threadkeeper.db") {
		t.Errorf("unexpected db path: %q", cfg.DBPath())
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
