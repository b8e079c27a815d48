package extract

import (
	"fmt"
	"os"
	"strings"
)

// OracleConfig holds extraction oracle configuration.
type OracleConfig struct {
	Provider    string // "ollama", "openai", "deepseek", "openrouter", "custom"
	Model       string // model name
	Endpoint    string // full chat completions URL
	APIKey      string
	TimeoutSecs int // per-request timeout (default: 120)
}

// ParseOracleFlag parses "provider/model" format. Model names may themselves
// contain slashes ("openrouter/google/gemini-2.0-flash").
func ParseOracleFlag(flag string) (*OracleConfig, error) {
	if flag == "" {
		return nil, fmt.Errorf("empty oracle flag")
	}

	slashIdx := strings.Index(flag, "/")
	if slashIdx == -1 {
		return nil, fmt.Errorf("invalid oracle format: expected 'provider/model', got %q", flag)
	}
	provider := flag[:slashIdx]
	model := flag[slashIdx+1:]
	if provider == "" {
		return nil, fmt.Errorf("empty provider in oracle flag: %q", flag)
	}
	if model == "" {
		return nil, fmt.Errorf("empty model in oracle flag: %q", flag)
	}

	config := &OracleConfig{
		Provider:    provider,
		Model:       model,
		TimeoutSecs: 120,
	}

	switch provider {
	case "ollama":
		config.Endpoint = "http://localhost:11434/v1/chat/completions"
		// No API key needed for Ollama
	case "openai":
		config.Endpoint = "https://api.openai.com/v1/chat/completions"
		config.APIKey = os.Getenv("OPENAI_API_KEY")
	case "deepseek":
		config.Endpoint = "https://api.deepseek.com/v1/chat/completions"
		config.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	case "openrouter":
		config.Endpoint = "https://openrouter.ai/api/v1/chat/completions"
		config.APIKey = os.Getenv("OPENROUTER_API_KEY")
	case "custom":
		config.Endpoint = os.Getenv("CALLSIFT_ORACLE_ENDPOINT")
		config.APIKey = os.Getenv("CALLSIFT_ORACLE_API_KEY")
	default:
		return nil, fmt.Errorf("unknown provider %q. Supported: ollama, openai, deepseek, openrouter, custom", provider)
	}

	// Environment variable overrides
	if endpoint := os.Getenv("CALLSIFT_ORACLE_ENDPOINT"); endpoint != "" {
		config.Endpoint = endpoint
	}
	if apiKey := os.Getenv("CALLSIFT_ORACLE_API_KEY"); apiKey != "" {
		config.APIKey = apiKey
	}

	return config, nil
}

// Validate checks that the oracle configuration is complete. Missing
// credentials are a fatal configuration error and must surface before any
// window is processed.
func (c *OracleConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Provider != "ollama" && c.APIKey == "" {
		return fmt.Errorf("API key is required for provider %q (set via environment variable)", c.Provider)
	}
	if c.TimeoutSecs <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
