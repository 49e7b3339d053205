package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryableClassification(t *testing.T) {
	assert.True(t, retryable(&APIError{StatusCode: 429}))
	assert.True(t, retryable(&APIError{StatusCode: 500}))
	assert.True(t, retryable(&APIError{StatusCode: 503}))
	assert.True(t, retryable(&APIError{StatusCode: 529}))
	assert.True(t, retryable(errors.New("connection refused")))

	assert.False(t, retryable(&APIError{StatusCode: 400}))
	assert.False(t, retryable(&APIError{StatusCode: 404}))
	assert.False(t, retryable(statusError(401, "bad key")))
	assert.False(t, retryable(context.Canceled))
	assert.False(t, retryable(context.DeadlineExceeded))
}

func TestWithRetryBackoffSchedule(t *testing.T) {
	var delays []time.Duration
	sleep := func(d time.Duration) { delays = append(delays, d) }

	attempts := 0
	err := withRetry(context.Background(), "test", sleep, func() error {
		attempts++
		if attempts < 3 {
			return &APIError{StatusCode: 429, Message: "rate limited"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	var delays []time.Duration
	sleep := func(d time.Duration) { delays = append(delays, d) }

	attempts := 0
	err := withRetry(context.Background(), "test", sleep, func() error {
		attempts++
		return &APIError{StatusCode: 503, Message: "overloaded"}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 503, apiErr.StatusCode)
	assert.Equal(t, 3, attempts)
	assert.Len(t, delays, 2)
}

func TestWithRetryNonRetryableFailsFast(t *testing.T) {
	var delays []time.Duration
	sleep := func(d time.Duration) { delays = append(delays, d) }

	attempts := 0
	err := withRetry(context.Background(), "test", sleep, func() error {
		attempts++
		return statusError(401, "invalid api key")
	})
	require.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, delays)
}

func TestWithRetryHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := withRetry(ctx, "test", func(time.Duration) { cancel() }, func() error {
		attempts++
		return &APIError{StatusCode: 429}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
