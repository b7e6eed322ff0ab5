package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

// Supported chat model providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultGeminiModel    = "gemini-2.5-flash"
	defaultEmbeddingModel = "text-embedding-3-small"
)

// ChatModelConfig defines the configuration for creating a chat model.
type ChatModelConfig struct {
	Provider    string // openai (default) or gemini
	APIKey      string
	BaseURL     string // OpenAI-compatible endpoint; empty uses the OpenAI API
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// NewChatModel creates a tool calling chat model for the configured provider.
func NewChatModel(ctx context.Context, config *ChatModelConfig) (model.ToolCallingChatModel, error) {
	if config == nil || config.APIKey == "" {
		return nil, llm.InvalidInput("API key is required in config")
	}

	switch strings.ToLower(config.Provider) {
	case "", ProviderOpenAI:
		return newOpenAIChatModel(ctx, config)
	case ProviderGemini:
		return newGeminiChatModel(ctx, config)
	default:
		return nil, llm.InvalidInput("unknown model provider %q", config.Provider)
	}
}

func newOpenAIChatModel(ctx context.Context, config *ChatModelConfig) (model.ToolCallingChatModel, error) {
	modelName := config.Model
	if modelName == "" {
		modelName = defaultOpenAIModel
	}

	temperature := config.Temperature
	cm, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
		APIKey:      config.APIKey,
		BaseURL:     config.BaseURL,
		Model:       modelName,
		Timeout:     config.Timeout,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create openai chat model: %w", err)
	}
	return cm, nil
}

func newGeminiChatModel(ctx context.Context, config *ChatModelConfig) (model.ToolCallingChatModel, error) {
	modelName := config.Model
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := config.Temperature
	cm, err := geminiModel.NewChatModel(ctx, &geminiModel.Config{
		Client:      client,
		Model:       modelName,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini chat model: %w", err)
	}
	return cm, nil
}

// EmbeddingConfig defines the configuration for creating an embedding model.
type EmbeddingConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int // Requested vector size; zero keeps the model default
	Timeout    time.Duration
}

// NewEmbeddingModel creates an OpenAI-compatible embedding model from specific configuration.
func NewEmbeddingModel(ctx context.Context, config *EmbeddingConfig) (einoEmbedding.Embedder, error) {
	if config == nil || config.APIKey == "" {
		return nil, llm.InvalidInput("API key is required in config")
	}

	modelName := config.Model
	if modelName == "" {
		modelName = defaultEmbeddingModel
	}

	cfg := &openaiEmbed.EmbeddingConfig{
		APIKey:  config.APIKey,
		BaseURL: config.BaseURL,
		Model:   modelName,
		Timeout: config.Timeout,
	}
	if config.Dimensions > 0 {
		dims := config.Dimensions
		cfg.Dimensions = &dims
	}

	emb, err := openaiEmbed.NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return emb, nil
}
