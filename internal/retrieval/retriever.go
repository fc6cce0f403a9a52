package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/internal/graph"
	"github.com/ckd-chatbot/backend/internal/metrics"
	"github.com/ckd-chatbot/backend/pkg/logger"
	"github.com/ckd-chatbot/backend/pkg/utils"
)

const (
	NoRelevantInfoMessage = "目前找不到相關資訊，請嘗試用不同的方式再次提問。"

	directScanPreamble = "根據您的問題，我找到了相關的資訊。請查看以下內容：\n\n"
	directScanRows     = 5
)

type Reason int

const (
	DatabaseUnavailable Reason = iota
	NoRelevantInfo
	SystemError
)

func (r Reason) String() string {
	switch r {
	case DatabaseUnavailable:
		return "database_unavailable"
	case NoRelevantInfo:
		return "no_relevant_info"
	default:
		return "system_error"
	}
}

// Failure is the terminal non-answer outcome of a retrieval.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Reason.String()
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Answer is a successful retrieval. Text is never empty.
type Answer struct {
	Text        string
	ContextRows []string
	Query       string
	Stage       string
	Strategy    Strategy
}

// Graph is the connection side of the graph executor.
type Graph interface {
	Connect(ctx context.Context) graph.Conn
}

// QueryGenerator produces a query for one prompt variant and answers from the
// rows it returned.
type QueryGenerator interface {
	Variant() Variant
	Generate(ctx context.Context, schema, question string) (string, error)
	Summarize(ctx context.Context, rows []string, question string) (string, error)
}

// Retriever walks the retrieval plan against a freshly validated connection.
type Retriever struct {
	graph      Graph
	generators map[Variant]QueryGenerator
	plan       []Step
	recovery   []Step
}

func NewRetriever(g Graph, primary, secondary QueryGenerator) *Retriever {
	return &Retriever{
		graph: g,
		generators: map[Variant]QueryGenerator{
			primary.Variant():   primary,
			secondary.Variant(): secondary,
		},
		plan:     DefaultPlan,
		recovery: RecoveryPlan,
	}
}

// Connect validates the store and returns a Searcher bound to it. An
// unreachable store yields a *Failure with DatabaseUnavailable.
func (r *Retriever) Connect(ctx context.Context) (Searcher, error) {
	conn := r.graph.Connect(ctx)
	if conn == nil {
		metrics.RetrievalOutcomes.WithLabelValues(DatabaseUnavailable.String()).Inc()
		return nil, &Failure{Reason: DatabaseUnavailable, Err: graph.ErrUnavailable}
	}
	return &searcher{retriever: r, conn: conn}, nil
}

// Retrieve connects and searches in one call.
func (r *Retriever) Retrieve(ctx context.Context, question string) (*Answer, error) {
	s, err := r.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return s.Retrieve(ctx, question)
}

// Searcher runs the retrieval plan on one validated connection.
type Searcher interface {
	Retrieve(ctx context.Context, question string) (*Answer, error)
}

// searcher is not safe for concurrent use; it caches the schema it read.
type searcher struct {
	retriever *Retriever
	conn      graph.Conn
	schema    string
}

// Retrieve returns an Answer, a *Failure, or the context error if ctx ended.
func (s *searcher) Retrieve(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	strategy := Classify(question)
	log := logger.GetLogger().With(
		zap.String("question_fp", utils.Fingerprint(question)),
		zap.String("strategy", string(strategy)),
	)

	log.Info("Retrieval started")

	answer, err := s.run(ctx, log, s.retriever.plan, question, strategy)
	if err != nil && recoverable(ctx, err) {
		log.Warn("Retrieval plan failed, running recovery", zap.Error(err))

		answer, err = s.run(ctx, log, s.retriever.recovery, question, strategy)
		if err != nil && recoverable(ctx, err) {
			log.Error("Retrieval recovery failed", zap.Error(err))
			err = &Failure{Reason: SystemError, Err: err}
		}
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var failure *Failure
		if errors.As(err, &failure) {
			metrics.RetrievalOutcomes.WithLabelValues(failure.Reason.String()).Inc()
			log.Info("Retrieval finished without answer",
				zap.String("reason", failure.Reason.String()),
				zap.Duration("elapsed", time.Since(start)),
			)
			return nil, failure
		}
		return nil, err
	}

	metrics.RetrievalOutcomes.WithLabelValues("answer").Inc()
	metrics.ContextRows.Observe(float64(len(answer.ContextRows)))
	log.Info("Retrieval answered",
		zap.String("stage", answer.Stage),
		zap.Int("context_rows", len(answer.ContextRows)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return answer, nil
}

// recoverable reports whether err should trigger the recovery plan. Store
// outages and exhausted plans are final.
func recoverable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var failure *Failure
	return !errors.As(err, &failure)
}

func (s *searcher) run(ctx context.Context, log *zap.Logger, steps []Step, question string, strategy Strategy) (answer *Answer, err error) {
	defer func() {
		if p := recover(); p != nil {
			answer = nil
			err = fmt.Errorf("retrieval panic: %v", p)
		}
	}()

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var verdict Verdict
		if step.DirectScan {
			answer, verdict, err = s.directScan(ctx, strategy)
		} else {
			answer, verdict, err = s.generated(ctx, log, step, question)
		}
		answer, err = settle(answer, err, step)
		if err != nil {
			return nil, err
		}

		metrics.RetrievalStages.WithLabelValues(step.Stage, verdict.String()).Inc()
		log.Info("Retrieval stage finished",
			zap.String("stage", step.Stage),
			zap.String("verdict", verdict.String()),
		)

		if verdict == Substantive {
			answer.Stage = step.Stage
			answer.Strategy = strategy
			return answer, nil
		}
		if step.DirectScan {
			break
		}
	}

	return nil, &Failure{Reason: NoRelevantInfo}
}

// settle turns store outages into DatabaseUnavailable.
func settle(answer *Answer, err error, step Step) (*Answer, error) {
	if err == nil {
		return answer, nil
	}
	if errors.Is(err, graph.ErrUnavailable) {
		return nil, &Failure{Reason: DatabaseUnavailable, Err: err}
	}
	return nil, fmt.Errorf("stage %s: %w", step.Stage, err)
}

func (s *searcher) generated(ctx context.Context, log *zap.Logger, step Step, question string) (*Answer, Verdict, error) {
	generator, ok := s.retriever.generators[step.Variant]
	if !ok {
		return nil, Empty, fmt.Errorf("no generator for variant %s", step.Variant)
	}

	schema, err := s.fetchSchema(ctx)
	if err != nil {
		return nil, Empty, err
	}

	query, err := generator.Generate(ctx, schema, question)
	if err != nil {
		return nil, Empty, err
	}

	rows, err := s.conn.Run(ctx, query)
	if err != nil {
		if isQueryFailure(ctx, err) {
			log.Warn("Generated query failed",
				zap.String("stage", step.Stage),
				zap.String("cypher", query),
				zap.Error(err),
			)
			return nil, Empty, nil
		}
		return nil, Empty, err
	}

	if len(rows) == 0 {
		return nil, Empty, nil
	}

	text, err := generator.Summarize(ctx, rows, question)
	if err != nil {
		return nil, Empty, err
	}

	verdict := Validate(Candidate{Text: text, Rows: rows, RowsCaptured: true})
	if verdict != Substantive {
		return nil, verdict, nil
	}

	return &Answer{Text: text, ContextRows: rows, Query: query}, verdict, nil
}

func (s *searcher) directScan(ctx context.Context, strategy Strategy) (*Answer, Verdict, error) {
	query := DirectScanQuery(strategy)

	rows, err := s.conn.Run(ctx, query)
	if err != nil {
		if errors.Is(err, graph.ErrUnavailable) || ctx.Err() != nil {
			return nil, Empty, err
		}
		logger.Warn("Direct scan failed", zap.String("cypher", query), zap.Error(err))
		return nil, Empty, nil
	}
	if len(rows) == 0 {
		return nil, Empty, nil
	}

	shown := rows
	if len(shown) > directScanRows {
		shown = shown[:directScanRows]
	}

	return &Answer{
		Text:        directScanPreamble + strings.Join(shown, "\n\n"),
		ContextRows: rows,
		Query:       query,
	}, Substantive, nil
}

// fetchSchema reads the live schema once per connection.
func (s *searcher) fetchSchema(ctx context.Context) (string, error) {
	if s.schema != "" {
		return s.schema, nil
	}

	schema, err := s.conn.FetchSchema(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch schema: %w", err)
	}
	s.schema = schema
	return schema, nil
}

// isQueryFailure reports whether a Run error is a problem with the query
// itself, including a per-query timeout while the caller is still waiting.
func isQueryFailure(ctx context.Context, err error) bool {
	var queryErr *graph.QueryError
	if errors.As(err, &queryErr) {
		return true
	}
	return ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)
}
