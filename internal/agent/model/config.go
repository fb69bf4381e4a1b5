package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL          string `envconfig:"CONVERSATION_TTL" default:"30m"`
	MaxTurnPairs int    `envconfig:"CONVERSATION_MAX_TURN_PAIRS" default:"3"`
	MaxSessions  int    `envconfig:"CONVERSATION_MAX_SESSIONS" default:"1024"`
	// ToolMaxCalls caps provider calls per turn; ToolRetryLimit caps completion requests.
	ToolMaxCalls   int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"4"`
	ToolRetryLimit int `envconfig:"CONVERSATION_TOOL_RETRY_LIMIT" default:"5"`
}

type CompletionModelConfig struct {
	Model       string        `envconfig:"COMPLETION_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int           `envconfig:"COMPLETION_MAX_TOKENS" default:"2000"`
	Temperature float32       `envconfig:"COMPLETION_TEMPERATURE" default:"0.1"`
	Timeout     time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"30s"`
}

type ToolProviderConfig struct {
	BaseURL     string        `envconfig:"TOOL_PROVIDER_URL" default:"http://localhost:8000"`
	OpenAPIPath string        `envconfig:"TOOL_PROVIDER_OPENAPI_PATH" default:"/openapi.json"`
	Timeout     time.Duration `envconfig:"TOOL_PROVIDER_TIMEOUT" default:"10s"`
}

type SessionStoreConfig struct {
	// Backend is "memory" or "redis".
	Backend string `envconfig:"SESSION_STORE" default:"memory"`
	// MemoryMaxEntries bounds the memory backend.
	MemoryMaxEntries int `envconfig:"SESSION_MEMORY_MAX_ENTRIES" default:"10000"`
}
