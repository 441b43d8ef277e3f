// Package config provides configuration for the chat service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the chat service configuration.
type Config struct {
	// Server settings
	HTTPPort    int      `yaml:"http_port"`
	CORSOrigins []string `yaml:"cors_origins"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Provider
	LLMBaseURL     string        `yaml:"llm_base_url"`
	LLMAPIKey      string        `yaml:"llm_api_key"`
	LLMModel       string        `yaml:"llm_model"`
	LLMTimeout     time.Duration `yaml:"llm_timeout"`
	LLMMaxTokens   int           `yaml:"llm_max_tokens"`
	LLMTemperature float64       `yaml:"llm_temperature"`

	// Conversation
	ContextWindow    int    `yaml:"context_window"`
	SystemPrompt     string `yaml:"system_prompt"`
	MaxMessageLength int    `yaml:"max_message_length"`
	PolicyFile       string `yaml:"policy_file"`

	// Rate limiting
	RateLimitBackend string        `yaml:"rate_limit_backend"`
	RedisAddr        string        `yaml:"redis_addr"`
	GlobalRateWindow time.Duration `yaml:"global_rate_window"`
	GlobalRateMax    int           `yaml:"global_rate_max"`
	ChatRateWindow   time.Duration `yaml:"chat_rate_window"`
	ChatRateMax      int           `yaml:"chat_rate_max"`

	// Auth
	AuthMode  string `yaml:"auth_mode"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		HTTPPort:         5000,
		CORSOrigins:      []string{"http://localhost:3000"},
		DatabaseURL:      "file:chat.db?_journal_mode=WAL&_busy_timeout=5000",
		LogLevel:         "info",
		LogFormat:        "console",
		LLMModel:         "gpt-3.5-turbo",
		LLMTimeout:       30 * time.Second,
		LLMMaxTokens:     1000,
		LLMTemperature:   0.7,
		ContextWindow:    10,
		MaxMessageLength: 2000,
		RateLimitBackend: "memory",
		GlobalRateWindow: 15 * time.Minute,
		GlobalRateMax:    100,
		ChatRateWindow:   time.Minute,
		ChatRateMax:      20,
		AuthMode:         "jwt",
	}
}

// Load reads defaults, then the YAML file named by CONFIG_FILE, then
// environment variables, each layer overriding the previous one.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LLMBaseURL = getEnv("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMAPIKey = getEnv("LLM_API_KEY", c.LLMAPIKey)
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.LLMTimeout = getEnvDurationMs("LLM_TIMEOUT_MS", c.LLMTimeout)
	c.LLMMaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLMMaxTokens)
	c.LLMTemperature = getEnvFloat("LLM_TEMPERATURE", c.LLMTemperature)
	c.ContextWindow = getEnvInt("CONTEXT_WINDOW", c.ContextWindow)
	c.SystemPrompt = getEnv("SYSTEM_PROMPT", c.SystemPrompt)
	c.MaxMessageLength = getEnvInt("MAX_MESSAGE_LENGTH", c.MaxMessageLength)
	c.PolicyFile = getEnv("POLICY_FILE", c.PolicyFile)
	c.RateLimitBackend = getEnv("RATE_LIMIT_BACKEND", c.RateLimitBackend)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.GlobalRateWindow = getEnvDurationMs("GLOBAL_RATE_WINDOW_MS", c.GlobalRateWindow)
	c.GlobalRateMax = getEnvInt("GLOBAL_RATE_MAX", c.GlobalRateMax)
	c.ChatRateWindow = getEnvDurationMs("CHAT_RATE_WINDOW_MS", c.ChatRateWindow)
	c.ChatRateMax = getEnvInt("CHAT_RATE_MAX", c.ChatRateMax)
	c.AuthMode = getEnv("AUTH_MODE", c.AuthMode)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.RateLimitBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis rate limit backend")
		}
	default:
		return errors.Errorf("unknown rate limit backend %q", c.RateLimitBackend)
	}
	if c.AuthMode == "jwt" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
	}
	if c.ContextWindow <= 0 {
		return errors.New("CONTEXT_WINDOW must be positive")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return errors.New("LLM_TEMPERATURE must be between 0 and 2")
	}
	if c.MaxMessageLength <= 0 {
		return errors.New("MAX_MESSAGE_LENGTH must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDurationMs(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
