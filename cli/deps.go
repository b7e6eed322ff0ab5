package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/Data-Day-Solutions/bookworm-backend/llm/agent"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/providers"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/tools"
	"github.com/Data-Day-Solutions/bookworm-backend/llm/vector"
)

// openStore connects the configured vector store backend
func openStore(ctx context.Context) (vector.VectorStore, error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case "memory":
		store, err := vector.OpenMemoryStore(cfg.Store.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("open snapshot: %w", err)
		}
		return store, nil
	default:
		ctx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout)
		defer cancel()
		store, err := vector.NewRedisStore(ctx, vector.RedisConfig{
			Addr:           cfg.Store.RedisAddr,
			Password:       cfg.Store.RedisPassword,
			DB:             cfg.Store.RedisDB,
			PoolSize:       cfg.Store.PoolSize,
			IndexName:      cfg.Store.IndexName,
			KeyPrefix:      cfg.Store.KeyPrefix,
			VectorDim:      cfg.Embedding.Dimension,
			EFConstruction: cfg.Store.EFConstruction,
			M:              cfg.Store.M,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return store, nil
	}
}

// openIndex wires the embedder and the vector store into an index client.
// The caller closes it.
func openIndex(ctx context.Context) (*vector.IndexClient, error) {
	emb, err := providers.NewEmbeddingModel(ctx, &providers.EmbeddingConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimension,
		Timeout:    cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	service := vector.NewEmbeddingService(emb, cfg.Embedding.Dimension, cfg.Embedding.Timeout)
	return vector.NewIndexClient(service, store, vector.IndexConfig{
		BatchSize:      cfg.Ingest.BatchSize,
		MaxRetries:     cfg.Ingest.MaxRetries,
		InitialBackoff: cfg.Ingest.InitialBackoff,
		StoreTimeout:   cfg.Store.Timeout,
	}, logger), nil
}

func newRetriever(index tools.Searcher) *tools.Retriever {
	return tools.NewRetriever(index, tools.RetrieverConfig{
		TopK:      cfg.Retrieval.TopK,
		Threshold: cfg.Retrieval.Threshold,
	})
}

// openOrchestrator builds the chat agent over index
func openOrchestrator(ctx context.Context, index tools.Searcher) (*agent.Orchestrator, error) {
	chatModel, err := providers.NewChatModel(ctx, &providers.ChatModelConfig{
		Provider:    cfg.Model.Provider,
		APIKey:      cfg.Model.APIKey,
		BaseURL:     cfg.Model.BaseURL,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		Timeout:     cfg.Model.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}

	toolbox, err := tools.NewToolbox(ctx, newRetriever(index))
	if err != nil {
		return nil, err
	}

	return agent.NewOrchestrator(chatModel, toolbox, agent.Config{
		MaxIterations:    cfg.Agent.MaxIterations,
		ModelTimeout:     cfg.Model.Timeout,
		ObservationLimit: cfg.Agent.ObservationLimit,
	}, logger)
}
