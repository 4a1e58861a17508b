package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

type LLMConfig struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	APIKeyEnv   string `json:"api_key_env"`
	ContextSize int    `json:"context_size"`
}

type Config struct {
	Server struct {
		Host          string `json:"host"`
		Port          int    `json:"port"`
		Subpath       string `json:"subpath"`
		SessionSecret string `json:"sessionSecret"`
	} `json:"server"`
	Postgres struct {
		DSN string `json:"dsn"`
	} `json:"postgres"`
	SQLite struct {
		Path string `json:"path"`
	} `json:"sqlite"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	LLMs    []LLMConfig `json:"llms"`
	Scraper struct {
		UserAgent      string `json:"user_agent"`
		TimeoutSeconds int    `json:"timeout_seconds"`
		MaxPageSizeMB  int    `json:"max_page_size_mb"`
	} `json:"scraper"`
	Limits struct {
		SessionQuestions  int `json:"session_questions"`
		GlobalRuns        int `json:"global_runs"`
		MaxURLLength      int `json:"max_url_length"`
		MaxQuestionLength int `json:"max_question_length"`
	} `json:"limits"`
	Usage struct {
		LogCSV      string `json:"log_csv"`
		FeedbackCSV string `json:"feedback_csv"`
	} `json:"usage"`
	Session struct {
		TTLMinutes int `json:"ttl_minutes"`
	} `json:"session"`
	Admin struct {
		PasswordHashEnv string `json:"password_hash_env"`
	} `json:"admin"`
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// LoadConfig reads config.json from disk (singleton)
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			cfgErr = fmt.Errorf("failed to read config file: %w", err)
			return
		}
		var c Config
		if err := json.Unmarshal(raw, &c); err != nil {
			cfgErr = fmt.Errorf("invalid config format: %w", err)
			return
		}
		// Minimal validation
		if c.Server.SessionSecret == "" {
			cfgErr = errors.New("sessionSecret must be set in config")
			return
		}
		applyDefaults(&c)
		cfg = &c
	})
	return cfg, cfgErr
}

func applyDefaults(c *Config) {
	if c.SQLite.Path == "" {
		c.SQLite.Path = "data/agent.db"
	}
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	}
	if c.Scraper.TimeoutSeconds == 0 {
		c.Scraper.TimeoutSeconds = 30
	}
	if c.Scraper.MaxPageSizeMB == 0 {
		c.Scraper.MaxPageSizeMB = 5
	}
	if c.Limits.SessionQuestions == 0 {
		c.Limits.SessionQuestions = 5
	}
	if c.Limits.GlobalRuns == 0 {
		c.Limits.GlobalRuns = 500
	}
	if c.Limits.MaxURLLength == 0 {
		c.Limits.MaxURLLength = 1000
	}
	if c.Limits.MaxQuestionLength == 0 {
		c.Limits.MaxQuestionLength = 500
	}
	if c.Usage.LogCSV == "" {
		c.Usage.LogCSV = "data/usage_log.csv"
	}
	if c.Usage.FeedbackCSV == "" {
		c.Usage.FeedbackCSV = "data/feedback.csv"
	}
	if c.Session.TTLMinutes == 0 {
		c.Session.TTLMinutes = 60
	}
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// AdminPasswordHash resolves the bcrypt hash for the admin endpoints from the
// environment. Empty disables the admin endpoints.
func (c *Config) AdminPasswordHash() string {
	if c.Admin.PasswordHashEnv == "" {
		return ""
	}
	return os.Getenv(c.Admin.PasswordHashEnv)
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}
