package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("neo4j", Config{FailureThreshold: 3, Timeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, func() error { return errBackend })
		assert.ErrorIs(t, err, errBackend)
	}

	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_IgnoresCallerErrors(t *testing.T) {
	errSyntax := errors.New("syntax error")
	cb := NewCircuitBreaker("neo4j", Config{
		FailureThreshold: 2,
		IsFailure:        func(err error) bool { return !errors.Is(err, errSyntax) },
	})

	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func() error { return errSyntax })
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(5), cb.Counts().TotalSuccesses)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("llm:test", Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		MaxRequests:      2,
		Timeout:          10 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, to)
		},
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBackend })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := NewCircuitBreaker("neo4j", Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "neo4j", cb.Name())
}
