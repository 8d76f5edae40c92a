package config

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxTokens:          1024,
			MaxToolIterations:  8,
			RequestTimeoutSecs: 90,
			HistoryTokenBudget: 12000,
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			MaxRetries:  2,
			TimeoutSecs: 120,
		},
		HTTP: HTTPConfig{
			Addr:                ":8080",
			ReadTimeoutSecs:     10,
			WriteTimeoutSecs:    120,
			ShutdownTimeoutSecs: 10,
		},
		Auth: AuthConfig{
			Issuer:        "tabletop",
			TokenTTLHours: 24,
		},
		Cache: CacheConfig{
			Prefix:  "tabletop:member:",
			TTLSecs: 300,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			Enabled: true,
		},
	}
}
