package llm

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

type openAIBackend struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func newOpenAIBackend(cfg Config, model string) *openAIBackend {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &openAIBackend{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: cfg.Options.Temperature,
		maxTokens:   cfg.Options.MaxTokens,
	}
}

func (b *openAIBackend) request(prompt string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: b.temperature,
		MaxTokens:   b.maxTokens,
		Stream:      stream,
	}
}

func (b *openAIBackend) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, b.request(prompt, false))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

func (b *openAIBackend) stream(ctx context.Context, prompt string, emit func(string) error) error {
	stream, err := b.client.CreateChatCompletionStream(ctx, b.request(prompt, true))
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if err := emit(resp.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
}
