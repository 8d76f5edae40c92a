package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

const (
	configDir  = ".tabletop"
	configFile = "config.json"
	dbFile     = "tabletop.db"
)

// Loader manages reading and writing the config file.
type Loader struct {
	mu       sync.RWMutex
	config   *Config
	filePath string
}

// NewLoader creates a loader that stores config in ~/.tabletop/config.json.
func NewLoader() (*Loader, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Loader{
		filePath: filepath.Join(dir, configFile),
	}, nil
}

// NewLoaderAt creates a loader for an explicit config file path.
func NewLoaderAt(path string) *Loader {
	return &Loader{filePath: path}
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}

// Load reads the config from disk and applies environment overrides.
// A missing file yields defaults.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := Defaults()

	data, err := os.ReadFile(l.filePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", l.filePath, err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(filepath.Dir(l.filePath), dbFile)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.config = cfg
	return cfg, nil
}

// Save writes the config to disk.
func (l *Loader) Save(cfg *Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	l.config = cfg
	return os.WriteFile(l.filePath, data, 0600)
}

// Get returns the currently loaded config (or defaults if not loaded yet).
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.config == nil {
		return Defaults()
	}
	return l.config
}

// FilePath returns the config file path.
func (l *Loader) FilePath() string {
	return l.filePath
}

// envOverrides holds raw environment values. Unset variables leave the
// file or default value in place.
type envOverrides struct {
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`

	LLMProvider string `env:"TABLETOP_LLM_PROVIDER"`
	LLMModel    string `env:"TABLETOP_LLM_MODEL"`
	LLMAPIKey   string `env:"TABLETOP_LLM_API_KEY"`
	LLMBaseURL  string `env:"TABLETOP_LLM_BASE_URL"`

	FallbackProvider string `env:"TABLETOP_FALLBACK_LLM_PROVIDER"`
	FallbackModel    string `env:"TABLETOP_FALLBACK_LLM_MODEL"`
	FallbackAPIKey   string `env:"TABLETOP_FALLBACK_LLM_API_KEY"`
	FallbackBaseURL  string `env:"TABLETOP_FALLBACK_LLM_BASE_URL"`

	MaxToolIterations *int `env:"TABLETOP_MAX_TOOL_ITERATIONS"`
	MaxTokens         *int `env:"TABLETOP_MAX_TOKENS"`

	HTTPAddr  string `env:"TABLETOP_HTTP_ADDR"`
	JWTSecret string `env:"TABLETOP_JWT_SECRET"`
	DBPath    string `env:"TABLETOP_DB_PATH"`

	RedisAddr     string `env:"TABLETOP_REDIS_ADDR"`
	RedisPassword string `env:"TABLETOP_REDIS_PASSWORD"`
	RedisDB       *int   `env:"TABLETOP_REDIS_DB"`

	MCPEnabled *bool `env:"TABLETOP_MCP_ENABLED"`

	VaultPassword string `env:"TABLETOP_VAULT_PASSWORD"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"TABLETOP_LOG_FORMAT"`
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var e envOverrides
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setString(&cfg.LLM.Provider, e.LLMProvider)
	setString(&cfg.LLM.Model, e.LLMModel)
	setString(&cfg.LLM.APIKey, e.LLMAPIKey)
	setString(&cfg.LLM.BaseURL, e.LLMBaseURL)
	setString(&cfg.FallbackLLM.Provider, e.FallbackProvider)
	setString(&cfg.FallbackLLM.Model, e.FallbackModel)
	setString(&cfg.FallbackLLM.APIKey, e.FallbackAPIKey)
	setString(&cfg.FallbackLLM.BaseURL, e.FallbackBaseURL)

	// Vendor keys fill in whichever provider still lacks one.
	for _, llm := range []*LLMConfig{&cfg.LLM, &cfg.FallbackLLM} {
		if llm.APIKey != "" {
			continue
		}
		switch llm.Provider {
		case "anthropic", "":
			llm.APIKey = e.AnthropicAPIKey
		case "openai":
			llm.APIKey = e.OpenAIAPIKey
		}
	}
	if cfg.FallbackLLM.Provider == "" {
		cfg.FallbackLLM.APIKey = ""
	}

	if e.MaxToolIterations != nil {
		cfg.Agent.MaxToolIterations = *e.MaxToolIterations
	}
	if e.MaxTokens != nil {
		cfg.Agent.MaxTokens = *e.MaxTokens
	}

	setString(&cfg.HTTP.Addr, e.HTTPAddr)
	setString(&cfg.Auth.JWTSecret, e.JWTSecret)
	setString(&cfg.Storage.DBPath, e.DBPath)
	setString(&cfg.Cache.RedisAddr, e.RedisAddr)
	setString(&cfg.Cache.RedisPassword, e.RedisPassword)
	if e.RedisDB != nil {
		cfg.Cache.RedisDB = *e.RedisDB
	}
	if e.MCPEnabled != nil {
		cfg.MCP.Enabled = *e.MCPEnabled
	}
	setString(&cfg.Secrets.VaultPassword, e.VaultPassword)
	setString(&cfg.Log.Level, e.LogLevel)
	setString(&cfg.Log.Format, e.LogFormat)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Agent.MaxToolIterations < 1 {
		errs = append(errs, fmt.Errorf("agent.max_tool_iterations must be at least 1, got %d", c.Agent.MaxToolIterations))
	}
	if c.Agent.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("agent.max_tokens must be at least 1, got %d", c.Agent.MaxTokens))
	}
	if c.Agent.RequestTimeoutSecs < 1 {
		errs = append(errs, fmt.Errorf("agent.request_timeout_secs must be at least 1, got %d", c.Agent.RequestTimeoutSecs))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
