package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	LLM      struct {
		BaseURL     string  `json:"base_url"`
		APIKey      string  `json:"api_key"`
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
	} `json:"llm"`
	Compaction struct {
		Strategy       string `json:"strategy"`
		TokenThreshold int    `json:"token_threshold"`
		Schedule       string `json:"schedule"`
	} `json:"compaction"`
	Approval struct {
		AllowList     []string          `json:"allow_list"`
		SafeTools     []string          `json:"safe_tools"`
		Policies      map[string]string `json:"policies"`
		DefaultPolicy string            `json:"default_policy"`
	} `json:"approval"`
	Executor struct {
		MaxConcurrent     int64 `json:"max_concurrent"`
		ArtifactThreshold int   `json:"artifact_threshold"`
	} `json:"executor"`
}

// DBPath returns the SQLite database location under the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "threadkeeper.db")
}

func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.DataDir = filepath.Join(os.Getenv("HOME"), ".threadkeeper")
	cfg.LogLevel = "info"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.Temperature = 0.7
	cfg.Compaction.Strategy = "trim-tool-results"
	cfg.Compaction.TokenThreshold = 80000
	cfg.Compaction.Schedule = "*/5 * * * *"
	cfg.Approval.AllowList = []string{"bash", "read_file", "read_url"}
	cfg.Approval.SafeTools = []string{"read_file"}
	cfg.Approval.Policies = map[string]string{"read_url": "allow"}
	cfg.Approval.DefaultPolicy = "ask"
	cfg.Executor.MaxConcurrent = 2
	cfg.Executor.ArtifactThreshold = 2000

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if dataDir := os.Getenv("THREADKEEPER_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
