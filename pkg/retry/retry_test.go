package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ReturnsLastError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return errors.New("still failing")
	})

	assert.EqualError(t, err, "still failing")
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	errSyntax := errors.New("invalid query")
	cfg := fastConfig()
	cfg.Retryable = func(err error) bool { return !errors.Is(err, errSyntax) }

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return errSyntax
	})

	assert.ErrorIs(t, err, errSyntax)
	assert.Equal(t, 1, attempts)
}

func TestDo_NeverRetriesCancellation(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return context.DeadlineExceeded
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), func() error {
		t.Fatal("operation must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	rows, err := DoWithResult(context.Background(), fastConfig(), func() ([]string, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return []string{"row"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"row"}, rows)
}
