package config

import "time"

// KeyringRef as a secret value means "read it from the key store".
const KeyringRef = "[keyring]"

// Config is the top-level application configuration.
type Config struct {
	Agent       AgentConfig   `json:"agent"`
	LLM         LLMConfig     `json:"llm"`
	FallbackLLM LLMConfig     `json:"fallback_llm"`
	HTTP        HTTPConfig    `json:"http"`
	Auth        AuthConfig    `json:"auth"`
	Storage     StorageConfig `json:"storage"`
	Cache       CacheConfig   `json:"cache"`
	Log         LogConfig     `json:"log"`
	MCP         MCPConfig     `json:"mcp"`
	Secrets     SecretsConfig `json:"-"`
}

type AgentConfig struct {
	MaxTokens          int     `json:"max_tokens"`
	Temperature        float64 `json:"temperature"`
	MaxToolIterations  int     `json:"max_tool_iterations"`
	RequestTimeoutSecs int     `json:"request_timeout_secs"`
	// HistoryTokenBudget caps the estimated size of caller-supplied history;
	// older turns are dropped first. Zero disables trimming.
	HistoryTokenBudget int `json:"history_token_budget"`
}

// RequestTimeout returns the per-request deadline.
func (a AgentConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSecs) * time.Second
}

type LLMConfig struct {
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	APIKey      string `json:"api_key,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
	MaxRetries  int    `json:"max_retries"`
	TimeoutSecs int    `json:"timeout_secs"`
}

type HTTPConfig struct {
	Addr                string `json:"addr"`
	ReadTimeoutSecs     int    `json:"read_timeout_secs"`
	WriteTimeoutSecs    int    `json:"write_timeout_secs"`
	ShutdownTimeoutSecs int    `json:"shutdown_timeout_secs"`
}

func (h HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeoutSecs) * time.Second
}

func (h HTTPConfig) WriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeoutSecs) * time.Second
}

func (h HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(h.ShutdownTimeoutSecs) * time.Second
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret,omitempty"`
	Issuer        string `json:"issuer"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

// TokenTTL returns the lifetime of minted tokens.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

type StorageConfig struct {
	// DBPath is the SQLite file; empty means tabletop.db in the config directory.
	DBPath string `json:"db_path,omitempty"`
}

type CacheConfig struct {
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db"`
	Prefix        string `json:"prefix"`
	TTLSecs       int    `json:"ttl_secs"`
}

// TTL returns how long a cached membership answer stays valid.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "text" or "json"
}

type MCPConfig struct {
	Enabled bool `json:"enabled"`
}

// SecretsConfig unlocks the encrypted vault used when the OS keyring is
// unavailable. It is never written to the config file.
type SecretsConfig struct {
	VaultPassword string
}
