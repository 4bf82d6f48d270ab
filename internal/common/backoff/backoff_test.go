package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_LinearBackoff(t *testing.T) {
	rec := &Recorder{}
	calls := 0

	err := Retry(context.Background(), 3, time.Second, rec.Sleep, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.Pauses())
}

func TestRetry_ReturnsLastError(t *testing.T) {
	rec := &Recorder{}
	err := Retry(context.Background(), 2, time.Second, rec.Sleep, func(attempt int) error {
		return errors.New("still failing")
	})

	assert.EqualError(t, err, "still failing")
	assert.Len(t, rec.Pauses(), 1)
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, 3, time.Millisecond, Sleep, func(int) error {
		calls++
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSleep_ZeroDuration(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
}
