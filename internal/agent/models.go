package agent

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ModelChoice names a supported foundation model
type ModelChoice string

const (
	ModelGPT5     ModelChoice = "gpt5"
	ModelDeepSeek ModelChoice = "deepseek"
)

var (
	ErrUnknownModel  = errors.New("unsupported model choice")
	ErrMissingAPIKey = errors.New("model api key is not set")
)

// ModelChoices lists every supported model in a stable order
func ModelChoices() []ModelChoice {
	return []ModelChoice{ModelGPT5, ModelDeepSeek}
}

func ParseModelChoice(s string) (ModelChoice, error) {
	switch choice := ModelChoice(strings.ToLower(strings.TrimSpace(s))); choice {
	case ModelGPT5, ModelDeepSeek:
		return choice, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownModel, s)
}

func (m ModelChoice) String() string {
	return string(m)
}

// ModelConfig describes how to reach a model over an OpenAI-compatible API.
// Credentials are read from the environment when a client is first built.
type ModelConfig struct {
	ModelName       string `yaml:"model_name"`
	APIKeyEnv       string `yaml:"api_key_env"`
	BaseURLEnv      string `yaml:"base_url_env"`
	FallbackBaseURL string `yaml:"fallback_base_url"`
	OrganizationEnv string `yaml:"organization_env"`
}

func (c ModelConfig) ResolveAPIKey() (string, error) {
	key := os.Getenv(c.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%w: %s is required for model %s", ErrMissingAPIKey, c.APIKeyEnv, c.ModelName)
	}
	return key, nil
}

func (c ModelConfig) ResolveBaseURL() string {
	if c.BaseURLEnv != "" {
		if v := os.Getenv(c.BaseURLEnv); v != "" {
			return v
		}
	}
	return c.FallbackBaseURL
}

func (c ModelConfig) ResolveOrganization() string {
	if c.OrganizationEnv == "" {
		return ""
	}
	return os.Getenv(c.OrganizationEnv)
}

// DefaultModelConfigs returns a fresh copy of the built-in model table
func DefaultModelConfigs() map[ModelChoice]ModelConfig {
	return map[ModelChoice]ModelConfig{
		ModelGPT5: {
			ModelName:       "gpt-5.0",
			APIKeyEnv:       "OPENAI_API_KEY",
			BaseURLEnv:      "OPENAI_BASE_URL",
			FallbackBaseURL: "https://api.openai.com/v1",
			OrganizationEnv: "OPENAI_ORG_ID",
		},
		ModelDeepSeek: {
			ModelName:       "deepseek-chat",
			APIKeyEnv:       "DEEPSEEK_API_KEY",
			BaseURLEnv:      "DEEPSEEK_BASE_URL",
			FallbackBaseURL: "https://api.deepseek.com/v1",
		},
	}
}

// Settings are the runtime knobs of the trading agent
type Settings struct {
	ModelChoice     ModelChoice
	Temperature     float64
	MaxOutputTokens int
	Models          map[ModelChoice]ModelConfig
	Timeout         time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		ModelChoice:     ModelGPT5,
		Temperature:     0.4,
		MaxOutputTokens: 1024,
		Models:          DefaultModelConfigs(),
		Timeout:         60 * time.Second,
	}
}
