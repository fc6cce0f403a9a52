package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractQuery(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "MATCH (n) RETURN n LIMIT 10", "MATCH (n) RETURN n LIMIT 10"},
		{"fenced", "```MATCH (n) RETURN n LIMIT 10;```", "MATCH (n) RETURN n LIMIT 10;"},
		{"fenced with tag", "Here you go:\n```cypher\nMATCH (n) RETURN n LIMIT 10\n```\nDone.", "MATCH (n) RETURN n LIMIT 10"},
		{"surrounding whitespace", "  MATCH (n) RETURN n  \n", "MATCH (n) RETURN n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractQuery(tt.text))
		})
	}
}

func TestGenerator_Generate(t *testing.T) {
	model := &fakeModel{name: "taiwan", responses: []string{"```cypher\nMATCH (d:Diet) RETURN d LIMIT 10\n```"}}
	g := NewSecondaryGenerator(model)

	query, err := g.Generate(context.Background(), "Diet {name: STRING}", "腎臟病飲食")

	require.NoError(t, err)
	assert.Equal(t, "MATCH (d:Diet) RETURN d LIMIT 10", query)
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "Diet {name: STRING}")
	assert.Contains(t, model.prompts[0], "問題：腎臟病飲食")
	assert.Contains(t, model.prompts[0], "LIMIT 10")
	assert.Equal(t, VariantSecondary, g.Variant())
}

func TestGenerator_TranslatesBeforeGenerating(t *testing.T) {
	translator := &fakeModel{name: "taiwan", responses: []string{" What should CKD patients eat? \n"}}
	model := &fakeModel{name: "llama", responses: []string{"MATCH (d:Diet) RETURN d LIMIT 10"}}
	g := NewPrimaryGenerator(model, translator)

	_, err := g.Generate(context.Background(), "schema", "腎臟病患者可以吃什麼？")

	require.NoError(t, err)
	assert.Contains(t, translator.prompts[0], "腎臟病患者可以吃什麼？")
	assert.Contains(t, model.prompts[0], "Question: What should CKD patients eat?")
}

func TestGenerator_TranslationFailureKeepsQuestion(t *testing.T) {
	translator := &fakeModel{name: "taiwan", err: errors.New("down")}
	model := &fakeModel{name: "llama", responses: []string{"MATCH (n) RETURN n LIMIT 10"}}
	g := NewPrimaryGenerator(model, translator)

	_, err := g.Generate(context.Background(), "schema", "洗腎")

	require.NoError(t, err)
	assert.Contains(t, model.prompts[0], "Question: 洗腎")
}

func TestGenerator_Summarize(t *testing.T) {
	model := &fakeModel{name: "llama", responses: []string{"  每天蛋白質攝取需控制。 "}}
	g := NewPrimaryGenerator(model, nil)

	text, err := g.Summarize(context.Background(), []string{`{"name": "低蛋白"}`, `{"name": "限磷"}`}, "吃什麼")

	require.NoError(t, err)
	assert.Equal(t, "每天蛋白質攝取需控制。", text)
	assert.Contains(t, model.prompts[0], `{"name": "低蛋白"}`+"\n"+`{"name": "限磷"}`)
	assert.Contains(t, model.prompts[0], "使用者問題：吃什麼")
}

func TestGenerator_ModelError(t *testing.T) {
	g := NewSecondaryGenerator(&fakeModel{name: "taiwan", err: errors.New("timeout")})

	_, err := g.Generate(context.Background(), "schema", "q")

	assert.ErrorContains(t, err, "failed to generate cypher")
}
