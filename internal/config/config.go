package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/huangang/deployguide/pkg/logger"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Output    OutputConfig    `yaml:"output"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Retention RetentionConfig `yaml:"retention"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// OutputConfig describes where generated artifacts live and under which URL
// prefix the static file server exposes them.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	FilesPrefix string `yaml:"files_prefix"`
}

type PromptConfig struct {
	Path string `yaml:"path"`
}

const (
	AuthModeBasic  = "basic"
	AuthModeBearer = "bearer"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

type UpstreamConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	CABundle string `yaml:"ca_bundle"`
	AuthMode string `yaml:"auth_mode"` // basic, bearer
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
}

// RetentionConfig controls the scheduled pruning of old artifacts.
// Days <= 0 disables it.
type RetentionConfig struct {
	Days     int    `yaml:"days"`
	Schedule string `yaml:"schedule"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := DefaultConfig()
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	// Values already present in the environment win over .env entries.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.overrideFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8000",
			Mode: "debug",
		},
		Log: LogConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Dir:         "output",
			FilesPrefix: "/files",
		},
		Prompt: PromptConfig{
			Path: "prompt.txt",
		},
		Upstream: UpstreamConfig{
			Provider: ProviderOpenAI,
			BaseURL:  "https://gpt4ifx.icp.infineon.com",
			Model:    "gpt-4o",
			CABundle: "ca-bundle.crt",
			AuthMode: AuthModeBasic,
		},
		Retention: RetentionConfig{
			Days:     0,
			Schedule: "0 3 * * *",
		},
		RateLimit: RateLimitConfig{
			RPS:   1,
			Burst: 5,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if dir := os.Getenv("OUTPUT_DIR"); dir != "" {
		c.Output.Dir = dir
	}
	if path := os.Getenv("PROMPT_PATH"); path != "" {
		c.Prompt.Path = path
	}
	if username := os.Getenv("GPT_USERNAME"); username != "" {
		c.Upstream.Username = username
	}
	if password := os.Getenv("GPT_PASSWORD"); password != "" {
		c.Upstream.Password = password
	}
	if token := os.Getenv("GPT_TOKEN"); token != "" {
		c.Upstream.Token = token
	}
	if mode := os.Getenv("UPSTREAM_AUTH_MODE"); mode != "" {
		c.Upstream.AuthMode = mode
	}
	if baseURL := os.Getenv("UPSTREAM_BASE_URL"); baseURL != "" {
		c.Upstream.BaseURL = baseURL
	}
	if model := os.Getenv("UPSTREAM_MODEL"); model != "" {
		c.Upstream.Model = model
	}
	if provider := os.Getenv("UPSTREAM_PROVIDER"); provider != "" {
		c.Upstream.Provider = provider
	}
	if bundle := os.Getenv("UPSTREAM_CA_BUNDLE"); bundle != "" {
		c.Upstream.CABundle = bundle
	}
	if days := os.Getenv("RETENTION_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil {
			c.Retention.Days = n
		} else {
			logger.Warn().Str("RETENTION_DAYS", days).Int("days", c.Retention.Days).Msg("Ignoring invalid RETENTION_DAYS")
		}
	}
	if schedule := os.Getenv("RETENTION_SCHEDULE"); schedule != "" {
		c.Retention.Schedule = schedule
	}
}

// Validate checks the static shape of the configuration. Credentials are
// checked per request when the authorization header is built.
func (c *Config) Validate() error {
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	switch c.Upstream.Provider {
	case ProviderOpenAI, ProviderAzure, ProviderAnthropic, ProviderOllama, ProviderGemini:
	default:
		return fmt.Errorf("unsupported upstream provider: %s", c.Upstream.Provider)
	}
	switch c.Upstream.AuthMode {
	case AuthModeBasic, AuthModeBearer:
	default:
		return fmt.Errorf("unsupported upstream auth mode: %s", c.Upstream.AuthMode)
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
