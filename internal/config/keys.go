// API key resolution and display helpers.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for the
// selected provider.
var ErrNoAPIKey = errors.New("no API key configured")

// envVarFor maps a provider name to its conventional key variable.
func envVarFor(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// APIKey returns the key for a provider, preferring the environment
// over the config file.
func APIKey(cfg *Config, provider string) (string, error) {
	if envVar := envVarFor(provider); envVar != "" {
		if key := os.Getenv(envVar); key != "" {
			return key, nil
		}
	}

	var key string
	if cfg != nil {
		switch provider {
		case "anthropic":
			key = cfg.Provider.AnthropicAPIKey
		case "openai":
			key = cfg.Provider.OpenAIAPIKey
		case "google":
			key = cfg.Provider.GeminiAPIKey
		}
	}
	key = os.ExpandEnv(key)
	if key != "" && !strings.HasPrefix(key, "${") {
		return key, nil
	}
	return "", fmt.Errorf("%w for provider %q", ErrNoAPIKey, provider)
}

// MaskAPIKey returns a display-safe version of an API key, keeping
// only the first 7 and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// APIKeySource returns where a provider's key would be sourced from.
func APIKeySource(cfg *Config, provider string) KeySource {
	if envVar := envVarFor(provider); envVar != "" && os.Getenv(envVar) != "" {
		return KeySourceEnv
	}
	if _, err := APIKey(cfg, provider); err == nil {
		return KeySourceConfig
	}
	return KeySourceNone
}
