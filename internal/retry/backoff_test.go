package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryer_SucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	r := New(DefaultPolicy(), nil)
	calls := 0
	err := r.Do(context.Background(), nil, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryer_RetriesUntilSuccess(t *testing.T) {
	r := New(&Policy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}, nil)
	calls := 0
	err := r.Do(context.Background(), nil, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryer_StopsOnNonRetryableError(t *testing.T) {
	r := New(&Policy{MaxRetries: 3, InitialDelay: time.Millisecond}, nil)
	calls := 0
	sentinel := errors.New("fatal")
	err := r.Do(context.Background(), func(error) bool { return false }, func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetryer_ExhaustsRetriesAndReturnsError(t *testing.T) {
	r := New(&Policy{MaxRetries: 2, InitialDelay: time.Millisecond}, nil)
	calls := 0
	sentinel := errors.New("boom")
	err := r.Do(context.Background(), nil, func() error {
		calls++
		return sentinel
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls) // initial + 2 retries
}

func TestRetryer_ContextCancellationStopsRetrying(t *testing.T) {
	r := New(&Policy{MaxRetries: 5, InitialDelay: 50 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, nil, func() error {
		calls++
		return errors.New("fail")
	})
	assert.Error(t, err)
	assert.Less(t, calls, 6)
}

func TestLinearPolicy_DelayGrowsLinearly(t *testing.T) {
	r := New(LinearPolicy(3, 10*time.Millisecond), nil)
	d1 := r.calculateDelay(1)
	d2 := r.calculateDelay(2)
	d3 := r.calculateDelay(3)
	assert.Equal(t, 10*time.Millisecond, d1)
	assert.Equal(t, 20*time.Millisecond, d2)
	assert.Equal(t, 30*time.Millisecond, d3)
}
