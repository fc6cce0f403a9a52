package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/internal/llm"
	"github.com/ckd-chatbot/backend/pkg/logger"
)

type Variant string

const (
	VariantPrimary   Variant = "primary"
	VariantSecondary Variant = "secondary"
)

// Generator turns a question into a Cypher query with one prompt/model pair,
// and answers from the rows that query returned.
type Generator struct {
	variant Variant
	model   llm.Model
	prompt  prompts.PromptTemplate
	// translator, when set, rewrites the question before generation.
	translator llm.Model
}

func NewPrimaryGenerator(model llm.Model, translator llm.Model) *Generator {
	return &Generator{
		variant:    VariantPrimary,
		model:      model,
		prompt:     primaryCypherPrompt,
		translator: translator,
	}
}

func NewSecondaryGenerator(model llm.Model) *Generator {
	return &Generator{
		variant: VariantSecondary,
		model:   model,
		prompt:  secondaryCypherPrompt,
	}
}

func (g *Generator) Variant() Variant {
	return g.variant
}

// Generate returns the query text the model produced. The text is untrusted.
func (g *Generator) Generate(ctx context.Context, schema, question string) (string, error) {
	if g.translator != nil {
		question = g.translate(ctx, question)
	}

	prompt, err := g.prompt.Format(map[string]any{
		"schema":   schema,
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format cypher prompt: %w", err)
	}

	text, err := g.model.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate cypher: %w", err)
	}

	query := extractQuery(text)
	logger.Debug("Cypher generated",
		zap.String("variant", string(g.variant)),
		zap.String("model", g.model.Name()),
		zap.String("cypher", query),
	)

	return query, nil
}

// Summarize answers question from the retrieved rows with the same model that
// generated the query.
func (g *Generator) Summarize(ctx context.Context, rows []string, question string) (string, error) {
	prompt, err := qaPrompt.Format(map[string]any{
		"context":  strings.Join(rows, "\n"),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format qa prompt: %w", err)
	}

	text, err := g.model.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to summarize rows: %w", err)
	}

	return strings.TrimSpace(text), nil
}

// translate falls back to the original question on any failure.
func (g *Generator) translate(ctx context.Context, question string) string {
	prompt, err := translationPrompt.Format(map[string]any{"question": question})
	if err != nil {
		return question
	}

	translated, err := g.translator.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("Question translation failed, using original", zap.Error(err))
		return question
	}

	translated = strings.TrimSpace(translated)
	if translated == "" {
		return question
	}
	return translated
}

var fencePattern = regexp.MustCompile("(?s)```(?:cypher|Cypher|CYPHER)?\\s*(.*?)```")

// extractQuery pulls the query out of a fenced block if the model wrapped it.
func extractQuery(text string) string {
	if match := fencePattern.FindStringSubmatch(text); match != nil {
		text = match[1]
	}
	return strings.TrimSpace(text)
}
