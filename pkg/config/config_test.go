package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.False(t, cfg.Retrieval.TranslateQuestion)
	assert.Equal(t, 30, cfg.RateLimit.MaxRequestsPerMinute)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: openai
  apiKey: sk-test
  primaryModel: gpt-4o-mini
session:
  backend: sqlite
retrieval:
  translateQuestion: true
`)
	t.Setenv("KIDNEYQA_NEO4J_URI", "bolt://graph:7687")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.PrimaryModel)
	assert.Equal(t, "sqlite", cfg.Session.Backend)
	assert.True(t, cfg.Retrieval.TranslateQuestion)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown provider", "llm:\n  provider: bedrock\n"},
		{"openai without key", "llm:\n  provider: openai\n"},
		{"unknown session backend", "session:\n  backend: dynamo\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
