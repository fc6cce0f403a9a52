package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/pkg/circuitbreaker"
	"github.com/ckd-chatbot/backend/pkg/logger"
	"github.com/ckd-chatbot/backend/pkg/retry"
)

// RowCap bounds every query executed against the knowledge graph.
const RowCap = 10

var ErrUnavailable = errors.New("graph store unavailable")

// QueryError reports a query the store refused or failed to execute. It is
// distinct from ErrUnavailable: the caller may try a different query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Conn is a validated handle on the graph store for one retrieval.
type Conn interface {
	FetchSchema(ctx context.Context) (string, error)
	Run(ctx context.Context, query string) ([]string, error)
}

type Config struct {
	URI          string
	Username     string
	Password     string
	Database     string
	QueryTimeout time.Duration
	MaxPoolSize  int
}

// Executor owns the process-wide driver. The driver pools connections and is
// safe for concurrent pipelines; Connect re-validates it on every call.
type Executor struct {
	driver       neo4j.DriverWithContext
	database     string
	queryTimeout time.Duration
	cb           *circuitbreaker.CircuitBreaker
	retryConfig  retry.Config
}

func NewExecutor(cfg Config) (*Executor, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			if cfg.MaxPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxPoolSize
			}
			c.ConnectionAcquisitionTimeout = 5 * time.Second
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	queryTimeout := cfg.QueryTimeout
	if queryTimeout == 0 {
		queryTimeout = 15 * time.Second
	}

	logger.Info("Neo4j executor initialized",
		zap.String("uri", cfg.URI),
		zap.String("database", cfg.Database),
	)

	return &Executor{
		driver:       driver,
		database:     cfg.Database,
		queryTimeout: queryTimeout,
		cb:           newBreaker(),
		retryConfig:  newRetryConfig(),
	}, nil
}

func newBreaker() *circuitbreaker.CircuitBreaker {
	return circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		IsFailure:        isBackendFailure,
		Logger:           logger.GetLogger(),
	})
}

func newRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:    2,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Retryable:      isTransient,
		Logger:         logger.GetLogger(),
	}
}

func (e *Executor) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// Connect verifies the store is reachable and returns a handle, or nil when
// it is not. It never returns an error: unavailability is an expected outcome.
func (e *Executor) Connect(ctx context.Context) Conn {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	err := e.cb.Execute(ctx, func() error {
		if err := e.driver.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	})
	if err != nil {
		logger.Warn("Neo4j connectivity check failed", zap.Error(err))
		return nil
	}

	return &conn{executor: e}
}

// Ping reports whether the store is currently reachable.
func (e *Executor) Ping(ctx context.Context) bool {
	return e.Connect(ctx) != nil
}

type conn struct {
	executor *Executor
}

func (c *conn) FetchSchema(ctx context.Context) (string, error) {
	var snapshot *schemaSnapshot

	err := c.executor.execute(ctx, "", func(ctx context.Context, session neo4j.SessionWithContext) error {
		var err error
		snapshot, err = readSchema(ctx, session)
		return err
	})
	if err != nil {
		return "", err
	}

	return snapshot.String(), nil
}

func (c *conn) Run(ctx context.Context, query string) ([]string, error) {
	var rows []string

	err := c.executor.execute(ctx, query, func(ctx context.Context, session neo4j.SessionWithContext) error {
		result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, query, nil)
			if err != nil {
				return nil, err
			}

			collected := make([]string, 0, RowCap)
			for len(collected) < RowCap && res.Next(ctx) {
				collected = append(collected, formatRecord(res.Record()))
			}
			if err := res.Err(); err != nil {
				return nil, err
			}

			return collected, nil
		})
		if err != nil {
			return err
		}

		rows = result.([]string)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Graph query executed",
		zap.String("query", query),
		zap.Int("rows", len(rows)),
	)

	return rows, nil
}

// execute runs operation under the per-query timeout. A timeout that fires
// while parent is still live is reported as a *QueryError.
func (e *Executor) execute(parent context.Context, query string, operation func(context.Context, neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(parent, e.queryTimeout)
	defer cancel()

	err := e.cb.Execute(ctx, func() error {
		return retry.Do(ctx, e.retryConfig, func() error {
			session := e.driver.NewSession(ctx, neo4j.SessionConfig{
				DatabaseName: e.database,
				AccessMode:   neo4j.AccessModeRead,
			})
			defer session.Close(ctx)

			return operation(ctx, session)
		})
	})

	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return &QueryError{Query: query, Err: err}
	}
	return classify(query, err)
}

// unavailableCodes are the server codes that mean the store as a whole cannot
// serve reads. Every other server error belongs to the query that caused it.
var unavailableCodes = map[string]bool{
	"Neo.TransientError.General.DatabaseUnavailable": true,
	"Neo.TransientError.Cluster.ReplicationFailure":  true,
	"Neo.TransientError.Cluster.NoLeaderAvailable":   true,
	"Neo.ClientError.Cluster.NotALeader":             true,
	"Neo.ClientError.Database.DatabaseNotFound":      true,
}

// classify maps driver errors onto ErrUnavailable or *QueryError.
func classify(query string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, ErrUnavailable) {
		return err
	}

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		if unavailableCodes[neoErr.Code] {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return &QueryError{Query: query, Err: err}
	}

	if neo4j.IsConnectivityError(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &QueryError{Query: query, Err: err}
}

// isBackendFailure separates store outages from errors in the query itself.
// Only outages count against the circuit breaker.
func isBackendFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return unavailableCodes[neoErr.Code]
	}

	return true
}

// isTransient reports whether another attempt at the same query may succeed.
func isTransient(err error) bool {
	if isBackendFailure(err) {
		return true
	}

	var neoErr *neo4j.Neo4jError
	return errors.As(err, &neoErr) && neoErr.Classification() == "TransientError"
}
