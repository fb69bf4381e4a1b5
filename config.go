package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/chative-dialogue/server/internal/agent/model"
	"github.com/chative-dialogue/server/internal/core"
	logx "github.com/chative-dialogue/server/pkg/logger"
	pkgredis "github.com/chative-dialogue/server/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// DialogueConfig is a YAML file; empty uses the embedded default.
	DialogueConfig string `envconfig:"DIALOGUE_CONFIG"`

	// Sections are processed on their own so their variable names stay flat.
	Redis        pkgredis.Config             `ignored:"true"`
	Completion   model.CompletionModelConfig `ignored:"true"`
	ToolProvider model.ToolProviderConfig    `ignored:"true"`
	Conversation model.ConversationConfig    `ignored:"true"`
	SessionStore model.SessionStoreConfig    `ignored:"true"`
}

func (c *AppConfig) ConversationTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.Conversation.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", c.Conversation.TTL, err)
	}
	return ttl, nil
}

func loadConfig(envFile string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logx.Debug().Err(err).Str("file", envFile).Msg("No dotenv file loaded")
		}
	}

	var cfg AppConfig
	sections := []struct {
		prefix string
		target any
	}{
		{"", &cfg},
		{"redis", &cfg.Redis},
		{"", &cfg.Completion},
		{"", &cfg.ToolProvider},
		{"", &cfg.Conversation},
		{"", &cfg.SessionStore},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return nil, fmt.Errorf("process environment config: %w", err)
		}
	}
	return &cfg, nil
}

func initLogger(cfg *AppConfig) {
	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})
}
