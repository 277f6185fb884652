package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tradeking/tradeking-api/internal/agent"
	"github.com/tradeking/tradeking-api/internal/market"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Account    AccountConfig
	Agent      agent.Settings
	Longbridge market.LongbridgeConfig
	Scheduler  SchedulerConfig
	WatchList  []string
}

type ServerConfig struct {
	Port  string
	Env   string
	Debug bool
}

func (s ServerConfig) Production() bool {
	return s.Env == "production"
}

type DatabaseConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret string
	APIKey    string
	APISecret string
}

type AccountConfig struct {
	File string
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// fileOverrides is the optional YAML document named by TRADE_AGENT_CONFIG
type fileOverrides struct {
	WatchList []string                            `yaml:"watch_list"`
	Models    map[agent.ModelChoice]agent.ModelConfig `yaml:"models"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:  getEnv("PORT", "8080"),
			Env:   getEnv("ENV", "development"),
			Debug: getEnv("DEBUG", "false") == "true",
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "tradeking.db"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "tradeking-secret-key"),
			APIKey:    os.Getenv("API_KEY"),
			APISecret: os.Getenv("API_SECRET"),
		},
		Account: AccountConfig{
			File: getEnv("ACCOUNT_FILE", "storage/virtual_account.json"),
		},
		Agent: agent.DefaultSettings(),
		Longbridge: market.LongbridgeConfig{
			AccessToken: os.Getenv("LONGBRIDGE_ACCESS_TOKEN"),
			BaseURL:     getEnv("LONGBRIDGE_BASE_URL", market.DefaultLongbridgeBaseURL),
		},
		WatchList: append([]string(nil), market.DefaultWatchList...),
	}

	choice, err := agent.ParseModelChoice(getEnv("TRADE_AGENT_MODEL", string(agent.ModelGPT5)))
	if err != nil {
		return nil, fmt.Errorf("TRADE_AGENT_MODEL: %w", err)
	}
	cfg.Agent.ModelChoice = choice

	if cfg.Agent.Temperature, err = getFloat("TRADE_AGENT_TEMPERATURE", 0.4); err != nil {
		return nil, err
	}
	if cfg.Agent.MaxOutputTokens, err = getInt("TRADE_AGENT_MAX_OUTPUT_TOKENS", 1024); err != nil {
		return nil, err
	}
	if cfg.Agent.Timeout, err = getDuration("MODEL_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Longbridge.Timeout, err = getDuration("LONGBRIDGE_TIMEOUT", market.DefaultLongbridgeTimeout); err != nil {
		return nil, err
	}

	cfg.Scheduler.Enabled = strings.EqualFold(getEnv("SCHEDULER_ENABLED", "false"), "true")
	minutes, err := getInt("SCHEDULER_INTERVAL_MINUTES", 5)
	if err != nil {
		return nil, err
	}
	if minutes < 1 {
		return nil, fmt.Errorf("SCHEDULER_INTERVAL_MINUTES must be at least 1, got %d", minutes)
	}
	cfg.Scheduler.Interval = time.Duration(minutes) * time.Minute

	if path := os.Getenv("TRADE_AGENT_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var overrides fileOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if len(overrides.WatchList) > 0 {
		c.WatchList = overrides.WatchList
	}
	for choice, model := range overrides.Models {
		parsed, err := agent.ParseModelChoice(string(choice))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		c.Agent.Models[parsed] = mergeModel(c.Agent.Models[parsed], model)
	}
	return nil
}

// mergeModel overlays the non-empty fields of override on base
func mergeModel(base, override agent.ModelConfig) agent.ModelConfig {
	if override.ModelName != "" {
		base.ModelName = override.ModelName
	}
	if override.APIKeyEnv != "" {
		base.APIKeyEnv = override.APIKeyEnv
	}
	if override.BaseURLEnv != "" {
		base.BaseURLEnv = override.BaseURLEnv
	}
	if override.FallbackBaseURL != "" {
		base.FallbackBaseURL = override.FallbackBaseURL
	}
	if override.OrganizationEnv != "" {
		base.OrganizationEnv = override.OrganizationEnv
	}
	return base
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return v, nil
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return v, nil
}

// getDuration accepts Go durations ("90s") or a bare number of seconds
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
