package retrieval

import (
	"context"
	"errors"

	"github.com/stretchr/testify/mock"

	"github.com/ckd-chatbot/backend/internal/graph"
	"github.com/ckd-chatbot/backend/internal/llm"
)

type MockGraph struct {
	mock.Mock
}

func (m *MockGraph) Connect(ctx context.Context) graph.Conn {
	args := m.Called(ctx)
	if conn := args.Get(0); conn != nil {
		return conn.(graph.Conn)
	}
	return nil
}

type MockConn struct {
	mock.Mock
}

func (m *MockConn) FetchSchema(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockConn) Run(ctx context.Context, query string) ([]string, error) {
	args := m.Called(ctx, query)
	if rows := args.Get(0); rows != nil {
		return rows.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockGenerator struct {
	mock.Mock
	variant Variant
}

func (m *MockGenerator) Variant() Variant {
	return m.variant
}

func (m *MockGenerator) Generate(ctx context.Context, schema, question string) (string, error) {
	args := m.Called(ctx, schema, question)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Summarize(ctx context.Context, rows []string, question string) (string, error) {
	args := m.Called(ctx, rows, question)
	return args.String(0), args.Error(1)
}

// fakeModel answers Generate from a queue and records the prompts it saw.
type fakeModel struct {
	name      string
	responses []string
	err       error
	prompts   []string
}

func (f *fakeModel) Name() string {
	return f.name
}

func (f *fakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	response := f.responses[0]
	f.responses = f.responses[1:]
	return response, nil
}

func (f *fakeModel) Stream(ctx context.Context, prompt string) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("not implemented")
}
