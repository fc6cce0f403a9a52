package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/internal/metrics"
	"github.com/ckd-chatbot/backend/pkg/circuitbreaker"
	"github.com/ckd-chatbot/backend/pkg/logger"
	"github.com/ckd-chatbot/backend/pkg/retry"
)

// Model is the language-model collaborator: a blocking completion and an
// incremental stream of text fragments over the same sampling settings.
type Model interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (<-chan StreamChunk, error)
}

// StreamChunk carries one fragment, or the error that ended the stream. A
// chunk with Err set is always the last one on the channel.
type StreamChunk struct {
	Content string
	Err     error
}

type Options struct {
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Options  Options
}

var ErrEmptyCompletion = errors.New("model returned no content")

type backend interface {
	complete(ctx context.Context, prompt string) (string, error)
	stream(ctx context.Context, prompt string, emit func(string) error) error
}

// Client adds timeouts, retries, a circuit breaker and metrics around one
// provider model.
type Client struct {
	backend     backend
	model       string
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

// New builds a Client for model on the configured provider.
func New(cfg Config, model string) (*Client, error) {
	var (
		b   backend
		err error
	)

	switch cfg.Provider {
	case "openai":
		b = newOpenAIBackend(cfg, model)
	case "ollama":
		b, err = newOllamaBackend(cfg, model)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model %s: %w", cfg.Provider, model, err)
	}

	logger.Info("LLM client initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", model),
		zap.Float32("temperature", cfg.Options.Temperature),
		zap.Int("max_tokens", cfg.Options.MaxTokens),
	)

	return newClient(b, model, cfg.Options.Timeout), nil
}

func newClient(b backend, model string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	cb := circuitbreaker.NewCircuitBreaker("llm:"+model, circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
		Logger: logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	return &Client{
		backend:     b,
		model:       model,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Name() string {
	return c.model
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var content string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			text, err := c.backend.complete(ctx, prompt)
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if text == "" {
				return ErrEmptyCompletion
			}
			content = text
			return nil
		})
	})

	c.observe("generate", start, err)
	if err != nil {
		return "", err
	}

	logger.Debug("LLM completion generated",
		zap.String("model", c.model),
		zap.Int("prompt_length", len(prompt)),
		zap.Int("completion_length", len(content)),
	)

	return content, nil
}

// Stream starts a streaming completion. Fragments are delivered in order;
// the channel is closed when the model finishes, fails, or ctx is done.
func (c *Client) Stream(ctx context.Context, prompt string) (<-chan StreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunks := make(chan StreamChunk, 16)

	go func() {
		defer close(chunks)

		streamCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		err := c.cb.Execute(streamCtx, func() error {
			return c.backend.stream(streamCtx, prompt, func(fragment string) error {
				if fragment == "" {
					return nil
				}
				select {
				case <-streamCtx.Done():
					return streamCtx.Err()
				case chunks <- StreamChunk{Content: fragment}:
					return nil
				}
			})
		})

		c.observe("stream", start, err)
		if err != nil {
			// A timeout still reaches the reader; only the caller going away
			// drops the error.
			select {
			case chunks <- StreamChunk{Err: fmt.Errorf("failed to stream completion: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return chunks, nil
}

func (c *Client) observe(mode string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		logger.Warn("LLM call failed",
			zap.String("model", c.model),
			zap.String("mode", mode),
			zap.Error(err),
		)
	}
	metrics.LLMCalls.WithLabelValues(c.model, mode, status).Inc()
	metrics.LLMLatency.WithLabelValues(c.model, mode).Observe(time.Since(start).Seconds())
}

// Collect drains a stream into a single string.
func Collect(chunks <-chan StreamChunk) (string, error) {
	var text string
	for chunk := range chunks {
		if chunk.Err != nil {
			return text, chunk.Err
		}
		text += chunk.Content
	}
	return text, nil
}
