package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/traitstore/errors"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.WrapTransient(stderrors.New("busy"), "test", "op", "call")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		attempts++
		return stderrors.New("persistent error")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Contains(t, err.Error(), "persistent error")
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnUnretryableErrors(t *testing.T) {
	sentinel := stderrors.New("bad request")

	tests := []struct {
		name string
		err  error
	}{
		{"marked", NonRetryable(sentinel)},
		{"invalid", errors.WrapInvalid(sentinel, "test", "op", "validate")},
		{"fatal", errors.WrapFatal(sentinel, "test", "op", "start")},
		{"cancelled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), fastConfig(5), func(context.Context) error {
				attempts++
				return tt.err
			})
			assert.Equal(t, 1, attempts)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDo_CustomRetryable(t *testing.T) {
	cfg := fastConfig(5)
	cfg.Retryable = func(err error) bool { return err.Error() == "again" }

	attempts := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		attempts++
		if attempts == 1 {
			return stderrors.New("again")
		}
		return stderrors.New("stop")
	})

	assert.EqualError(t, err, "stop")
	assert.Equal(t, 2, attempts)
}

func TestDo_OnRetryReportsBackoff(t *testing.T) {
	cfg := fastConfig(4)
	var delays []time.Duration
	var seen []int
	cfg.OnRetry = func(attempt int, _ error, delay time.Duration) {
		seen = append(seen, attempt)
		delays = append(delays, delay)
	}

	_ = Do(context.Background(), cfg, func(context.Context) error {
		return stderrors.New("nope")
	})

	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}, delays)
}

func TestDo_DelayCappedAtMax(t *testing.T) {
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 2 * time.Millisecond,
		MaxDelay:     3 * time.Millisecond,
		Multiplier:   10,
	}
	var delays []time.Duration
	cfg.OnRetry = func(_ int, _ error, delay time.Duration) {
		delays = append(delays, delay)
	}

	_ = Do(context.Background(), cfg, func(context.Context) error {
		return stderrors.New("nope")
	})

	require.Len(t, delays, 4)
	assert.Equal(t, 2*time.Millisecond, delays[0])
	for _, d := range delays[1:] {
		assert.Equal(t, 3*time.Millisecond, d)
	}
}

func TestDo_JitterBounded(t *testing.T) {
	cfg := Config{
		MaxAttempts:  2,
		InitialDelay: 8 * time.Millisecond,
		MaxDelay:     8 * time.Millisecond,
		AddJitter:    true,
	}
	var delay time.Duration
	cfg.OnRetry = func(_ int, _ error, d time.Duration) { delay = d }

	_ = Do(context.Background(), cfg, func(context.Context) error {
		return stderrors.New("nope")
	})

	assert.GreaterOrEqual(t, delay, 8*time.Millisecond)
	assert.Less(t, delay, 10*time.Millisecond)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := Do(ctx, cfg, func(context.Context) error {
		attempts++
		return stderrors.New("error")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, attempts, 5)
}

func TestDo_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	err := Do(ctx, fastConfig(1), func(ctx context.Context) error {
		assert.Equal(t, "v", ctx.Value(key{}))
		return nil
	})
	require.NoError(t, err)
}

func TestDo_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative initial", Config{InitialDelay: -1}},
		{"negative max", Config{MaxDelay: -1}},
		{"negative multiplier", Config{Multiplier: -1}},
		{"max below initial", Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			err := Do(context.Background(), tt.cfg, func(context.Context) error {
				called = true
				return nil
			})
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.False(t, called)
		})
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func(context.Context) error {
		attempts++
		return stderrors.New("once")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(context.Background(), fastConfig(3), func(context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", stderrors.New("not yet")
		}
		return "bucket", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "bucket", got)
	assert.Equal(t, 2, attempts)
}

func TestPresets(t *testing.T) {
	for name, cfg := range map[string]Config{
		"default":    DefaultConfig(),
		"quick":      Quick(),
		"persistent": Persistent(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := cfg.normalize()
			require.NoError(t, err)
			assert.Greater(t, cfg.MaxAttempts, 1)
			assert.True(t, cfg.AddJitter)
		})
	}
}
