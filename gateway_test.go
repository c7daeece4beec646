package smartedit

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		Timeout:     time.Second,
		BackoffBase: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

func TestRetryingCompleterRecoversFromTransientError(t *testing.T) {
	var calls int32
	next := completerFunc(func(ctx context.Context, prompt string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("connection reset")
		}
		return "ok:" + prompt, nil
	})

	out, err := NewRetryingCompleter(next, fastRetry(3), nil).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok:p", out)
	assert.Equal(t, int32(2), calls)
}

func TestRetryingCompleterStopsOnFatalError(t *testing.T) {
	var calls int32
	denied := errors.New("permission denied")
	next := completerFunc(func(ctx context.Context, prompt string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", newFatalError(denied)
	})

	_, err := NewRetryingCompleter(next, fastRetry(5), nil).Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, int32(1), calls)
}

func TestRetryingCompleterExhaustsAttempts(t *testing.T) {
	var calls int32
	next := completerFunc(func(ctx context.Context, prompt string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("503")
	})

	_, err := NewRetryingCompleter(next, fastRetry(3), nil).Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, int32(3), calls)
}

func TestRetryingCompleterRetriesEmptyCompletion(t *testing.T) {
	c := &scriptedCompleter{responses: []string{"  \n", `{"actions":[]}`}}

	out, err := NewRetryingCompleter(c, fastRetry(3), nil).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `{"actions":[]}`, out)
	assert.Equal(t, 2, c.calls())
}

func TestRetryingCompleterPerAttemptTimeout(t *testing.T) {
	var calls int32
	next := completerFunc(func(ctx context.Context, prompt string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "late but fine", nil
	})
	cfg := fastRetry(2)
	cfg.Timeout = 20 * time.Millisecond

	out, err := NewRetryingCompleter(next, cfg, nil).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "late but fine", out)
}

func TestRetryingCompleterHonorsCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	next := completerFunc(func(ctx context.Context, prompt string) (string, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		return "", ctx.Err()
	})

	_, err := NewRetryingCompleter(next, fastRetry(5), nil).Complete(ctx, "p")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls)
}

func TestPermanentStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusUnauthorized, true},
		{http.StatusNotFound, true},
		{http.StatusTooManyRequests, false},
		{http.StatusRequestTimeout, false},
		{http.StatusInternalServerError, false},
		{http.StatusServiceUnavailable, false},
		{0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, permanentStatus(tt.code), "status %d", tt.code)
	}
}

func TestNewGeminiCompleterRequiresKey(t *testing.T) {
	_, err := NewGeminiCompleter(context.Background(), "", "")
	assert.Error(t, err)
}
