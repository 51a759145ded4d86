package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmgate/internal/models"
)

// transientError is a retryable test error with a fixed kind.
type transientError struct {
	kind string
	msg  string
}

func (e *transientError) Error() string     { return e.msg }
func (e *transientError) Retryable() bool   { return true }
func (e *transientError) RetryKind() string { return e.kind }

// fatalError is never retryable.
type fatalError struct {
	msg string
}

func (e *fatalError) Error() string   { return e.msg }
func (e *fatalError) Retryable() bool { return false }

func testPolicy() models.RetryConfig {
	return models.RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Second,
		BackoffFactor: 2.0,
		MaxWait:       60 * time.Second,
		Jitter:        false,
	}
}

// newTestHandler returns a handler whose backoff sleeps are recorded instead
// of performed.
func newTestHandler(policy models.RetryConfig) (*Handler, *[]time.Duration) {
	h := NewHandler(policy)
	var sleeps []time.Duration
	h.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return h, &sleeps
}

func TestHandler_WaitTime_ExponentialGrowth(t *testing.T) {
	h := NewHandler(testPolicy())

	assert.Equal(t, 1*time.Second, h.WaitTime(0))
	assert.Equal(t, 2*time.Second, h.WaitTime(1))
	assert.Equal(t, 4*time.Second, h.WaitTime(2))
	assert.Equal(t, 8*time.Second, h.WaitTime(3))
}

func TestHandler_WaitTime_CappedAtMaxWait(t *testing.T) {
	policy := testPolicy()
	policy.MaxWait = 5 * time.Second
	h := NewHandler(policy)

	assert.Equal(t, 4*time.Second, h.WaitTime(2))
	assert.Equal(t, 5*time.Second, h.WaitTime(3))
	assert.Equal(t, 5*time.Second, h.WaitTime(10))
}

func TestHandler_WaitTime_JitterRange(t *testing.T) {
	policy := testPolicy()
	policy.Jitter = true
	h := NewHandler(policy)

	// The jitter multiplier is uniform in [0.5, 1.5)
	base := 2 * time.Second
	for i := 0; i < 100; i++ {
		w := h.WaitTime(1)
		assert.GreaterOrEqual(t, w, base/2)
		assert.Less(t, w, base*3/2)
	}
}

func TestHandler_WaitTime_JitterBounds(t *testing.T) {
	policy := testPolicy()
	policy.Jitter = true
	h := NewHandler(policy)

	h.randF = func() float64 { return 0 }
	assert.Equal(t, 500*time.Millisecond, h.WaitTime(0))

	h.randF = func() float64 { return 0.5 }
	assert.Equal(t, time.Second, h.WaitTime(0))
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	h, sleeps := newTestHandler(testPolicy())

	calls := 0
	result, err := Do(context.Background(), h, func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", &transientError{kind: KindUnavailable, msg: "service unavailable"}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
	assert.Len(t, h.History(), 2)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	h, sleeps := newTestHandler(testPolicy())

	calls := 0
	fatal := &fatalError{msg: "bad credentials"}
	_, err := Do(context.Background(), h, func(ctx context.Context) (string, error) {
		calls++
		return "", fatal
	})

	require.Error(t, err)
	assert.Same(t, fatal, err, "error must propagate unwrapped")
	assert.Equal(t, 1, calls)
	assert.Len(t, h.History(), 1)
	assert.Empty(t, *sleeps, "no backoff sleep for a non-retryable error")
}

func TestDo_ExhaustsRetriesAndReturnsLastError(t *testing.T) {
	h, _ := newTestHandler(testPolicy())

	calls := 0
	last := &transientError{kind: KindRateLimit, msg: "provider rate limited"}
	_, err := Do(context.Background(), h, func(ctx context.Context) (string, error) {
		calls++
		return "", last
	})

	require.Error(t, err)
	assert.Same(t, last, err)
	// maxRetries=2 means 3 attempts total
	assert.Equal(t, 3, calls)
	assert.Len(t, h.History(), 3)
}

func TestDo_FirstAttemptSuccessIsFree(t *testing.T) {
	h, sleeps := newTestHandler(testPolicy())

	result, err := Do(context.Background(), h, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Empty(t, h.History())
	assert.Empty(t, *sleeps)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	policy := testPolicy()
	policy.InitialDelay = 10 * time.Second
	h := NewHandler(policy)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := Do(ctx, h, func(ctx context.Context) (string, error) {
		calls++
		return "", &transientError{kind: KindUnavailable, msg: "unavailable"}
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls, "no second attempt after cancellation")
}

func TestHandler_HistoryRecordsKindAndMessage(t *testing.T) {
	h, _ := newTestHandler(testPolicy())

	_, err := Do(context.Background(), h, func(ctx context.Context) (string, error) {
		return "", &fatalError{msg: "validation failed"}
	})
	require.Error(t, err)

	history := h.History()
	require.Len(t, history, 1)
	assert.Equal(t, 0, history[0].Attempt)
	assert.Equal(t, KindFatal, history[0].Kind)
	assert.Equal(t, "validation failed", history[0].Message)
	assert.False(t, history[0].Timestamp.IsZero())
}

func TestHandler_ClearHistory(t *testing.T) {
	h, _ := newTestHandler(testPolicy())

	_, _ = Do(context.Background(), h, func(ctx context.Context) (string, error) {
		return "", &fatalError{msg: "nope"}
	})
	require.NotEmpty(t, h.History())

	h.ClearHistory()
	assert.Empty(t, h.History())
}

func TestIsRetryable_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"retryable provider error", &transientError{kind: KindRateLimit, msg: "429"}, true},
		{"non-retryable provider error", &fatalError{msg: "401"}, false},
		{"network timeout", &net.DNSError{IsTimeout: true}, true},
		{"connection failure", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"plain error", errors.New("something odd"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestKindOf_NetworkErrors(t *testing.T) {
	assert.Equal(t, KindTimeout, kindOf(&net.DNSError{IsTimeout: true}))
	assert.Equal(t, KindConnection, kindOf(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.Equal(t, KindTimeout, kindOf(context.DeadlineExceeded))
	assert.Equal(t, KindFatal, kindOf(errors.New("mystery")))
}
