package llm

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

type ollamaBackend struct {
	client      *ollama.LLM
	temperature float64
	maxTokens   int
}

func newOllamaBackend(cfg Config, model string) (*ollamaBackend, error) {
	serverURL := cfg.BaseURL
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}

	client, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, err
	}

	return &ollamaBackend{
		client:      client,
		temperature: float64(cfg.Options.Temperature),
		maxTokens:   cfg.Options.MaxTokens,
	}, nil
}

func (b *ollamaBackend) callOptions() []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(b.temperature)}
	if b.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(b.maxTokens))
	}
	return opts
}

func (b *ollamaBackend) complete(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, b.client, prompt, b.callOptions()...)
}

func (b *ollamaBackend) stream(ctx context.Context, prompt string, emit func(string) error) error {
	opts := append(b.callOptions(), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		return emit(string(chunk))
	}))

	_, err := llms.GenerateFromSinglePrompt(ctx, b.client, prompt, opts...)
	return err
}
