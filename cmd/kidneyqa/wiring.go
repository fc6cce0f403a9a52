package main

import (
	"fmt"
	"time"

	"github.com/ckd-chatbot/backend/internal/compose"
	"github.com/ckd-chatbot/backend/internal/graph"
	"github.com/ckd-chatbot/backend/internal/llm"
	"github.com/ckd-chatbot/backend/internal/pipeline"
	"github.com/ckd-chatbot/backend/internal/retrieval"
	"github.com/ckd-chatbot/backend/pkg/config"
)

type components struct {
	graph        *graph.Executor
	secondary    *llm.Client
	orchestrator *pipeline.Orchestrator
}

func buildPipeline(cfg *config.Config) (*components, error) {
	executor, err := graph.NewExecutor(graph.Config{
		URI:          cfg.Neo4j.URI,
		Username:     cfg.Neo4j.Username,
		Password:     cfg.Neo4j.Password,
		Database:     cfg.Neo4j.Database,
		QueryTimeout: time.Duration(cfg.Neo4j.QueryTimeoutSec) * time.Second,
		MaxPoolSize:  cfg.Neo4j.MaxPoolSize,
	})
	if err != nil {
		return nil, err
	}

	llmConfig := llm.Config{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Options: llm.Options{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		},
	}

	primary, err := llm.New(llmConfig, cfg.LLM.PrimaryModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create primary model: %w", err)
	}
	secondary, err := llm.New(llmConfig, cfg.LLM.SecondaryModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create secondary model: %w", err)
	}

	var translator llm.Model
	if cfg.Retrieval.TranslateQuestion {
		translator = primary
	}

	retriever := retrieval.NewRetriever(
		executor,
		retrieval.NewPrimaryGenerator(primary, translator),
		retrieval.NewSecondaryGenerator(secondary),
	)

	return &components{
		graph:        executor,
		secondary:    secondary,
		orchestrator: pipeline.NewOrchestrator(retriever, compose.NewComposer(secondary)),
	}, nil
}
