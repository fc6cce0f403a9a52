package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckd-chatbot/backend/internal/gate"
	"github.com/ckd-chatbot/backend/internal/llm"
	"github.com/ckd-chatbot/backend/internal/retrieval"
)

const kidneyQuestion = "腎臟病患者可以吃什麼？"

type fakeRetriever struct {
	connectErr error
	answer     *retrieval.Answer
	err        error
	connects   int
}

func (f *fakeRetriever) Connect(ctx context.Context) (retrieval.Searcher, error) {
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f, nil
}

func (f *fakeRetriever) Retrieve(ctx context.Context, question string) (*retrieval.Answer, error) {
	return f.answer, f.err
}

type composerCall struct {
	phase string
	input string
}

type fakeComposer struct {
	mu        sync.Mutex
	detail    []string
	outline   []string
	detailErr error
	calls     []composerCall
}

func (f *fakeComposer) record(phase, input string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, composerCall{phase: phase, input: input})
}

func (f *fakeComposer) Calls() []composerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]composerCall(nil), f.calls...)
}

func (f *fakeComposer) Detail(ctx context.Context, retrieved, question string) (<-chan llm.StreamChunk, error) {
	f.record("detail", retrieved)
	chunks := make(chan llm.StreamChunk)
	go func() {
		defer close(chunks)
		for _, fragment := range f.detail {
			select {
			case chunks <- llm.StreamChunk{Content: fragment}:
			case <-ctx.Done():
				return
			}
		}
		if f.detailErr != nil {
			select {
			case chunks <- llm.StreamChunk{Err: f.detailErr}:
			case <-ctx.Done():
			}
		}
	}()
	return chunks, nil
}

func (f *fakeComposer) Outline(ctx context.Context, detail, question string) (<-chan llm.StreamChunk, error) {
	f.record("outline", detail)
	chunks := make(chan llm.StreamChunk, len(f.outline))
	for _, fragment := range f.outline {
		chunks <- llm.StreamChunk{Content: fragment}
	}
	close(chunks)
	return chunks, nil
}

func collect(events <-chan Event) []Event {
	var out []Event
	for event := range events {
		out = append(out, event)
	}
	return out
}

func assertSingleTerminalLast(t *testing.T, events []Event) {
	t.Helper()
	require.NotEmpty(t, events)
	terminals := 0
	for _, event := range events {
		if event.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.True(t, events[len(events)-1].Terminal())
}

func TestAnswerStream_RefusesOffTopicQuestion(t *testing.T) {
	retriever := &fakeRetriever{}
	composer := &fakeComposer{}
	o := NewOrchestrator(retriever, composer)

	events := collect(o.AnswerStream(context.Background(), "今天天氣如何？"))

	require.Len(t, events, 1)
	assert.Equal(t, DoneEvent(gate.RefusalMessage, gate.RefusalMessage), events[0])
	assert.Zero(t, retriever.connects)
	assert.Empty(t, composer.Calls())
}

func TestAnswerStream_DatabaseUnavailable(t *testing.T) {
	retriever := &fakeRetriever{connectErr: &retrieval.Failure{Reason: retrieval.DatabaseUnavailable}}
	composer := &fakeComposer{}
	o := NewOrchestrator(retriever, composer)

	events := collect(o.AnswerStream(context.Background(), kidneyQuestion))

	require.Len(t, events, 1)
	assert.Equal(t, ErrorEvent(DatabaseUnavailableMessage), events[0])
	assert.Empty(t, composer.Calls())
}

func TestAnswerStream_FullRun(t *testing.T) {
	retriever := &fakeRetriever{answer: &retrieval.Answer{Text: "低蛋白飲食", ContextRows: []string{"a", "b"}}}
	composer := &fakeComposer{
		detail:  []string{"建議", "低蛋白", "飲食。"},
		outline: []string{"- 低蛋白", "\n- 限鉀"},
	}
	o := NewOrchestrator(retriever, composer)

	events := collect(o.AnswerStream(context.Background(), kidneyQuestion))

	assert.Equal(t, []Event{
		StatusEvent(queryingMessage),
		StatusEvent(composingDetailMessage),
		{Type: EventDetailChunk, Content: "建議"},
		{Type: EventDetailChunk, Content: "低蛋白"},
		{Type: EventDetailChunk, Content: "飲食。"},
		StatusEvent(composingOutlineMessage),
		{Type: EventOutlineChunk, Content: "- 低蛋白"},
		{Type: EventOutlineChunk, Content: "\n- 限鉀"},
		DoneEvent("- 低蛋白\n- 限鉀", "建議低蛋白飲食。"),
	}, events)

	calls := composer.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, composerCall{phase: "detail", input: "低蛋白飲食"}, calls[0])
	assert.Equal(t, composerCall{phase: "outline", input: "建議低蛋白飲食。"}, calls[1])
}

func TestAnswerStream_NoRelevantInfoStillComposes(t *testing.T) {
	retriever := &fakeRetriever{err: &retrieval.Failure{Reason: retrieval.NoRelevantInfo}}
	composer := &fakeComposer{detail: []string{"目前無法提供具體建議。"}, outline: []string{"- 無資料"}}
	o := NewOrchestrator(retriever, composer)

	events := collect(o.AnswerStream(context.Background(), kidneyQuestion))

	assertSingleTerminalLast(t, events)
	assert.Equal(t, EventDone, events[len(events)-1].Type)
	assert.Equal(t, retrieval.NoRelevantInfoMessage, composer.Calls()[0].input)
}

func TestAnswerStream_RetrievalSystemError(t *testing.T) {
	retriever := &fakeRetriever{err: &retrieval.Failure{Reason: retrieval.SystemError, Err: errors.New("neo4j: syntax")}}
	composer := &fakeComposer{}
	o := NewOrchestrator(retriever, composer)

	events := collect(o.AnswerStream(context.Background(), kidneyQuestion))

	assert.Equal(t, []Event{StatusEvent(queryingMessage), ErrorEvent(SystemErrorMessage)}, events)
	assert.Empty(t, composer.Calls())
}

func TestAnswerStream_ComposerErrorEndsWithError(t *testing.T) {
	retriever := &fakeRetriever{answer: &retrieval.Answer{Text: "t"}}
	composer := &fakeComposer{detail: []string{"部分"}, detailErr: errors.New("model reset")}
	o := NewOrchestrator(retriever, composer)

	events := collect(o.AnswerStream(context.Background(), kidneyQuestion))

	assertSingleTerminalLast(t, events)
	last := events[len(events)-1]
	assert.Equal(t, ErrorEvent(SystemErrorMessage), last)
	assert.NotContains(t, last.Content, "model reset")
	for _, call := range composer.Calls() {
		assert.NotEqual(t, "outline", call.phase)
	}
}

func TestAnswerStream_CancellationStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retriever := &fakeRetriever{answer: &retrieval.Answer{Text: "t"}}
	composer := &fakeComposer{
		detail:  []string{"一", "二", "三", "四"},
		outline: []string{"- x"},
	}
	o := NewOrchestrator(retriever, composer)

	events := o.AnswerStream(ctx, kidneyQuestion)
	for event := range events {
		if event.Type == EventDetailChunk {
			cancel()
			break
		}
	}
	rest := collect(events)

	for _, event := range rest {
		assert.False(t, event.Terminal(), "no terminal event after cancellation")
	}
	for _, call := range composer.Calls() {
		assert.NotEqual(t, "outline", call.phase)
	}
}

func TestAnswerStream_TerminalIsAlwaysLast(t *testing.T) {
	scenarios := map[string]*fakeRetriever{
		"answer":      {answer: &retrieval.Answer{Text: "t"}},
		"no info":     {err: &retrieval.Failure{Reason: retrieval.NoRelevantInfo}},
		"system":      {err: &retrieval.Failure{Reason: retrieval.SystemError}},
		"unavailable": {connectErr: &retrieval.Failure{Reason: retrieval.DatabaseUnavailable}},
	}

	for name, retriever := range scenarios {
		t.Run(name, func(t *testing.T) {
			composer := &fakeComposer{detail: []string{"d1", "d2"}, outline: []string{"o1"}}
			o := NewOrchestrator(retriever, composer)

			assertSingleTerminalLast(t, collect(o.AnswerStream(context.Background(), kidneyQuestion)))
		})
	}
}

func TestAnswer_DrainsStream(t *testing.T) {
	retriever := &fakeRetriever{answer: &retrieval.Answer{Text: "t"}}
	composer := &fakeComposer{detail: []string{"詳細", "回答"}, outline: []string{"- 大綱"}}
	o := NewOrchestrator(retriever, composer)

	result, err := o.Answer(context.Background(), kidneyQuestion)

	require.NoError(t, err)
	assert.Equal(t, &ComposedAnswer{Outline: "- 大綱", Detail: "詳細回答"}, result)
}

func TestAnswer_Refusal(t *testing.T) {
	o := NewOrchestrator(&fakeRetriever{}, &fakeComposer{})

	result, err := o.Answer(context.Background(), "今天天氣如何？")

	require.NoError(t, err)
	assert.Equal(t, gate.RefusalMessage, result.Outline)
	assert.Equal(t, result.Outline, result.Detail)
}

func TestAnswer_ErrorEvent(t *testing.T) {
	o := NewOrchestrator(&fakeRetriever{connectErr: &retrieval.Failure{Reason: retrieval.DatabaseUnavailable}}, &fakeComposer{})

	result, err := o.Answer(context.Background(), kidneyQuestion)

	assert.Nil(t, result)
	var answerErr *AnswerError
	require.ErrorAs(t, err, &answerErr)
	assert.Equal(t, DatabaseUnavailableMessage, answerErr.Message)
}

func TestAnswer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(&fakeRetriever{answer: &retrieval.Answer{Text: "t"}}, &fakeComposer{})
	_, err := o.Answer(ctx, kidneyQuestion)

	assert.ErrorIs(t, err, context.Canceled)
}
