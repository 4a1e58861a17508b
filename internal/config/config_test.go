package config

import (
	"os"
	"testing"
)

func TestLoadConfig_Valid(t *testing.T) {
	ResetConfigForTest()
	tmp := "test_config.json"
	raw := []byte(`{
		"server": {
			"host": "localhost",
			"port": 8080,
			"subpath": "/agent",
			"sessionSecret": "mysecret"
		},
		"sqlite": {
			"path": "data/test.db"
		},
		"redis": {
			"addr": "localhost:6379",
			"password": "",
			"db": 0
		},
		"llms": [
			{"name": "gpt-4o-mini", "url": "http://localhost:8000/v1/chat/completions", "context_size": 128000}
		],
		"limits": {
			"session_questions": 5,
			"global_runs": 100
		}
	}`)
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		t.Fatalf("write tmp config: %v", err)
	}
	defer os.Remove(tmp)

	cfg, err := LoadConfig(tmp)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.LLMs[0].Name != "gpt-4o-mini" {
		t.Errorf("llms config not loaded")
	}
	if cfg.Limits.SessionQuestions != 5 || cfg.Limits.GlobalRuns != 100 {
		t.Errorf("limits not loaded: %+v", cfg.Limits)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfigForTest()
	tmp := "test_defaults_config.json"
	raw := []byte(`{"server": {"sessionSecret": "s"}}`)
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		t.Fatalf("write tmp config: %v", err)
	}
	defer os.Remove(tmp)

	cfg, err := LoadConfig(tmp)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Limits.MaxURLLength != 1000 {
		t.Errorf("expected default max url length 1000, got %d", cfg.Limits.MaxURLLength)
	}
	if cfg.Limits.SessionQuestions != 5 {
		t.Errorf("expected default session limit 5, got %d", cfg.Limits.SessionQuestions)
	}
	if cfg.Usage.LogCSV != "data/usage_log.csv" {
		t.Errorf("expected default usage log path, got %s", cfg.Usage.LogCSV)
	}
	if cfg.Scraper.TimeoutSeconds != 30 {
		t.Errorf("expected default scraper timeout, got %d", cfg.Scraper.TimeoutSeconds)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	ResetConfigForTest()
	_, err := LoadConfig("no_such_config.json")
	if err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	ResetConfigForTest()
	tmp := "test_invalid_config.json"
	raw := []byte(`{this is not json}`)
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		t.Fatalf("write tmp config: %v", err)
	}
	defer os.Remove(tmp)

	_, err := LoadConfig(tmp)
	if err == nil {
		t.Errorf("expected error for malformed JSON")
	}
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	ResetConfigForTest()
	tmp := "test_nosecret_config.json"
	raw := []byte(`{"server": {"host": "x"}}`)
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		t.Fatalf("write tmp config: %v", err)
	}
	defer os.Remove(tmp)

	_, err := LoadConfig(tmp)
	if err == nil {
		t.Errorf("expected error when sessionSecret is missing")
	}
}
