package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for Saqal
type Config struct {
	LLM        LLMConfig        `json:"llm"`
	Reflection ReflectionConfig `json:"reflection"`
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Batch      BatchConfig      `json:"batch"`
}

// LLMConfig holds the completion API configuration used for running
// prompts over test inputs (any OpenAI-compatible endpoint)
type LLMConfig struct {
	URL         string  `json:"url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// ReflectionConfig holds the model used for mutation proposals. It is
// usually a stronger model than the one under refinement; empty fields
// fall back to the LLM configuration.
type ReflectionConfig struct {
	URL         string  `json:"url,omitempty"`
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	PostgresURL string `json:"postgres_url"`
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"`
}

// BatchConfig tunes batch execution
type BatchConfig struct {
	Workers          int `json:"workers"`            // parallel completion calls per batch
	DefaultBatchSize int `json:"default_batch_size"` // inputs per review round when a session sets none
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			URL:         "https://api.openai.com/v1",
			APIKey:      "",
			Model:       "gpt-4o-mini",
			MaxTokens:   2048,
			Temperature: 0.7,
		},
		Reflection: ReflectionConfig{
			Model:       "gpt-4o",
			MaxTokens:   4096,
			Temperature: 0.8,
		},
		Database: DatabaseConfig{
			PostgresURL: "postgres://localhost:5432/saqal",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Batch: BatchConfig{
			Workers:          4,
			DefaultBatchSize: 10,
		},
	}
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envFloat loads a float64 environment variable into the target pointer if set and valid
func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// envStringSlice loads a comma-separated environment variable into a string slice
func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	envString("SAQAL_LLM_URL", &cfg.LLM.URL)
	envString("SAQAL_LLM_API_KEY", &cfg.LLM.APIKey)
	envString("SAQAL_LLM_MODEL", &cfg.LLM.Model)
	envInt("SAQAL_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	envFloat("SAQAL_LLM_TEMPERATURE", &cfg.LLM.Temperature)

	envString("SAQAL_REFLECTION_URL", &cfg.Reflection.URL)
	envString("SAQAL_REFLECTION_API_KEY", &cfg.Reflection.APIKey)
	envString("SAQAL_REFLECTION_MODEL", &cfg.Reflection.Model)
	envInt("SAQAL_REFLECTION_MAX_TOKENS", &cfg.Reflection.MaxTokens)
	envFloat("SAQAL_REFLECTION_TEMPERATURE", &cfg.Reflection.Temperature)

	envString("SAQAL_POSTGRES_URL", &cfg.Database.PostgresURL)

	envString("SAQAL_SERVER_HOST", &cfg.Server.Host)
	envInt("SAQAL_SERVER_PORT", &cfg.Server.Port)
	envStringSlice("SAQAL_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	envInt("SAQAL_BATCH_WORKERS", &cfg.Batch.Workers)
	envInt("SAQAL_DEFAULT_BATCH_SIZE", &cfg.Batch.DefaultBatchSize)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ReflectionLLM returns the reflection model configuration with the LLM
// configuration filling any unset fields.
func (c *Config) ReflectionLLM() LLMConfig {
	r := LLMConfig{
		URL:         c.Reflection.URL,
		APIKey:      c.Reflection.APIKey,
		Model:       c.Reflection.Model,
		MaxTokens:   c.Reflection.MaxTokens,
		Temperature: c.Reflection.Temperature,
	}
	if r.URL == "" {
		r.URL = c.LLM.URL
	}
	if r.APIKey == "" {
		r.APIKey = c.LLM.APIKey
	}
	if r.Model == "" {
		r.Model = c.LLM.Model
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = c.LLM.MaxTokens
	}
	if r.Temperature == 0 {
		r.Temperature = c.LLM.Temperature
	}
	return r
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "LLM temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, "LLM max_tokens must be positive")
	}
	if c.LLM.URL == "" {
		errs = append(errs, "LLM URL is required")
	} else if !isValidURL(c.LLM.URL) {
		errs = append(errs, "LLM URL must be a valid URL")
	}

	if c.Reflection.URL != "" && !isValidURL(c.Reflection.URL) {
		errs = append(errs, "reflection URL must be a valid URL")
	}
	if c.Reflection.Temperature < 0 || c.Reflection.Temperature > 2 {
		errs = append(errs, "reflection temperature must be between 0 and 2")
	}

	if c.Database.PostgresURL == "" {
		errs = append(errs, "PostgreSQL URL is required")
	} else if !isValidURL(c.Database.PostgresURL) {
		errs = append(errs, "PostgreSQL URL must be a valid URL")
	}

	if c.Batch.Workers < 1 {
		errs = append(errs, "batch workers must be at least 1")
	}
	if c.Batch.DefaultBatchSize < 1 {
		errs = append(errs, "default batch size must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	if path := os.Getenv("SAQAL_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	// Check ~/.config/saqal/config.json first
	configDir := filepath.Join(homeDir, ".config", "saqal")
	configPath := filepath.Join(configDir, "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	// Check ~/.saqal/config.json
	altPath := filepath.Join(homeDir, ".saqal", "config.json")
	if _, err := os.Stat(altPath); err == nil {
		return altPath
	}

	return configPath
}
