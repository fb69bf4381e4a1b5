// Package llm builds the production completion service.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/chative-dialogue/server/internal/agent/model"
	logx "github.com/chative-dialogue/server/pkg/logger"
)

// ThinkingBudget bounds the model's internal reasoning tokens per call.
const ThinkingBudget = 1024

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey     string
	BaseURL    string
	Completion model.CompletionModelConfig
}

var ErrMissingAPIKey = errors.New("llm: missing API key")

// NewChatModel creates the Gemini chat model used by the tool loop.
func NewChatModel(ctx context.Context, config ChatModelConfig) (*gemini.ChatModel, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	completion := config.Completion
	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       completion.Model,
		Temperature: &completion.Temperature,
		MaxTokens:   &completion.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(ThinkingBudget)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating completion model")
		return nil, fmt.Errorf("error creating completion model: %w", err)
	}

	logx.Debug().Str("model", completion.Model).Msg("Completion model ready")
	return chatModel, nil
}
