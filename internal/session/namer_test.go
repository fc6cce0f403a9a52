package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckd-chatbot/backend/internal/llm"
)

type titleModel struct {
	title string
	err   error
}

func (m *titleModel) Name() string { return "title" }

func (m *titleModel) Generate(ctx context.Context, prompt string) (string, error) {
	return m.title, m.err
}

func (m *titleModel) Stream(ctx context.Context, prompt string) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("not used")
}

func TestQuickTitle(t *testing.T) {
	assert.Equal(t, "洗腎", QuickTitle("  洗腎 "))

	long := strings.Repeat("腎", 31)
	assert.Equal(t, strings.Repeat("腎", 30)+"...", QuickTitle(long))
	assert.Equal(t, strings.Repeat("腎", 30), QuickTitle(strings.Repeat("腎", 30)))
}

func TestNamer_NameWithModel(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sess, err := store.Create(ctx, "u", "")
	require.NoError(t, err)

	NewNamer(store, &titleModel{title: "「腎臟病飲食建議」\n其他說明"}).NameWithModel(ctx, sess.ID, "可以吃什麼")

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "腎臟病飲食建議", got.Name)
}

func TestNamer_ModelFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sess, err := store.Create(ctx, "u", "")
	require.NoError(t, err)

	NewNamer(store, &titleModel{err: errors.New("offline")}).NameWithModel(ctx, sess.ID, "透析多久一次")

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "透析多久一次", got.Name)
}

func TestNamer_MissingSessionIsNotFatal(t *testing.T) {
	namer := NewNamer(NewMemoryStore(), nil)
	assert.NotPanics(t, func() {
		namer.NameFromMessage(context.Background(), "missing", "x")
	})
}
