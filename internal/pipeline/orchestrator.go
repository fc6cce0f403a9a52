package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/internal/gate"
	"github.com/ckd-chatbot/backend/internal/llm"
	"github.com/ckd-chatbot/backend/internal/metrics"
	"github.com/ckd-chatbot/backend/internal/retrieval"
	"github.com/ckd-chatbot/backend/pkg/logger"
	"github.com/ckd-chatbot/backend/pkg/utils"
)

const (
	DatabaseUnavailableMessage = "資料庫連結異常，請稍後再試。"
	SystemErrorMessage         = "系統發生錯誤，請稍後再試。"

	queryingMessage         = "正在查詢資料庫..."
	composingDetailMessage  = "正在生成詳細回答..."
	composingOutlineMessage = "正在生成摘要..."
)

type Retriever interface {
	Connect(ctx context.Context) (retrieval.Searcher, error)
}

type Composer interface {
	Detail(ctx context.Context, retrieved, question string) (<-chan llm.StreamChunk, error)
	Outline(ctx context.Context, detail, question string) (<-chan llm.StreamChunk, error)
}

type ComposedAnswer struct {
	Outline string `json:"outline"`
	Detail  string `json:"detail"`
}

// AnswerError is the user-facing failure of a pipeline run. Message is safe
// to show; the cause is only logged.
type AnswerError struct {
	Message string
}

func (e *AnswerError) Error() string {
	return e.Message
}

var errNoTerminal = errors.New("answer stream ended without a terminal event")

// Orchestrator runs gate, retrieval, detail and outline for one question at a
// time per call. Calls are independent and may run concurrently.
type Orchestrator struct {
	retriever Retriever
	composer  Composer
}

func NewOrchestrator(retriever Retriever, composer Composer) *Orchestrator {
	return &Orchestrator{
		retriever: retriever,
		composer:  composer,
	}
}

// AnswerStream starts a run and returns its events. The channel carries at
// most one terminal event and is closed after it. When ctx is cancelled the
// run stops and the channel is closed without further events.
func (o *Orchestrator) AnswerStream(ctx context.Context, question string) <-chan Event {
	events := make(chan Event)
	go o.run(ctx, question, events)
	return events
}

// Answer drains AnswerStream. It returns an *AnswerError for an error event.
func (o *Orchestrator) Answer(ctx context.Context, question string) (*ComposedAnswer, error) {
	var (
		result *ComposedAnswer
		err    error
	)

	for event := range o.AnswerStream(ctx, question) {
		switch event.Type {
		case EventDone:
			result = &ComposedAnswer{Outline: event.Outline, Detail: event.Detail}
		case EventError:
			err = &AnswerError{Message: event.Content}
		}
	}

	if result == nil && err == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errNoTerminal
	}
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, question string, events chan<- Event) {
	defer close(events)

	start := time.Now()
	outcome := "cancelled"
	log := logger.GetLogger().With(
		zap.String("run_id", uuid.New().String()),
		zap.String("question_fp", utils.Fingerprint(question)),
	)
	defer func() {
		metrics.PipelineDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		log.Info("Answer pipeline finished",
			zap.String("outcome", outcome),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	emit := func(event Event) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case events <- event:
			metrics.StreamEvents.WithLabelValues(string(event.Type)).Inc()
			return true
		}
	}
	fail := func(message string, err error) {
		if ctx.Err() != nil {
			return
		}
		log.Error("Answer pipeline failed", zap.Error(err))
		if emit(ErrorEvent(message)) {
			outcome = "error"
		}
	}

	if !gate.Check(question) {
		metrics.GateDecisions.WithLabelValues("rejected").Inc()
		log.Info("Question rejected by relevance gate")
		if emit(DoneEvent(gate.RefusalMessage, gate.RefusalMessage)) {
			outcome = "refused"
		}
		return
	}
	metrics.GateDecisions.WithLabelValues("accepted").Inc()

	searcher, err := o.retriever.Connect(ctx)
	if err != nil {
		fail(failureMessage(err), err)
		return
	}

	if !emit(StatusEvent(queryingMessage)) {
		return
	}

	retrieved, err := o.retrieve(ctx, searcher, question)
	if err != nil {
		fail(failureMessage(err), err)
		return
	}

	if !emit(StatusEvent(composingDetailMessage)) {
		return
	}
	detail, err := o.compose(ctx, o.composer.Detail, retrieved, question, EventDetailChunk, emit)
	if err != nil {
		fail(SystemErrorMessage, err)
		return
	}

	if !emit(StatusEvent(composingOutlineMessage)) {
		return
	}
	outline, err := o.compose(ctx, o.composer.Outline, detail, question, EventOutlineChunk, emit)
	if err != nil {
		fail(SystemErrorMessage, err)
		return
	}

	if emit(DoneEvent(outline, detail)) {
		outcome = "answered"
	}
}

// retrieve returns the text composition runs on. NoRelevantInfo still
// composes, on the canned not-found message.
func (o *Orchestrator) retrieve(ctx context.Context, searcher retrieval.Searcher, question string) (string, error) {
	answer, err := searcher.Retrieve(ctx, question)
	if err == nil {
		return answer.Text, nil
	}

	var failure *retrieval.Failure
	if errors.As(err, &failure) && failure.Reason == retrieval.NoRelevantInfo {
		return retrieval.NoRelevantInfoMessage, nil
	}
	return "", err
}

type streamFunc func(ctx context.Context, input, question string) (<-chan llm.StreamChunk, error)

// compose forwards every fragment as it arrives and returns the full text.
func (o *Orchestrator) compose(ctx context.Context, start streamFunc, input, question string, chunkType EventType, emit func(Event) bool) (string, error) {
	chunks, err := start(ctx, input, question)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		text.WriteString(chunk.Content)
		if !emit(Event{Type: chunkType, Content: chunk.Content}) {
			return "", context.Cause(ctx)
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return text.String(), nil
}

func failureMessage(err error) string {
	var failure *retrieval.Failure
	if errors.As(err, &failure) && failure.Reason == retrieval.DatabaseUnavailable {
		return DatabaseUnavailableMessage
	}
	return SystemErrorMessage
}
