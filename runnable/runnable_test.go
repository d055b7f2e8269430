package runnable

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// errorCollector records error-channel events for assertions.
type errorCollector struct {
	mu     sync.Mutex
	events []error
}

func (c *errorCollector) handler(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, err)
}

func (c *errorCollector) snapshot() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.events))
	copy(out, c.events)
	return out
}

func runToCompletion(t *testing.T, r *Runnable) error {
	t.Helper()
	outcome := make(chan error, 1)
	calls := 0
	r.Run(func(err error) {
		calls++
		outcome <- err
	})
	select {
	case err := <-outcome:
		require.Equal(t, 1, calls, "completion callback must fire exactly once")
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("run never completed")
		return nil
	}
}

func TestNewClassification(t *testing.T) {
	tests := []struct {
		name          string
		fn            any
		expectedSync  bool
		expectedAsync int
	}{
		{name: "zero-arg func", fn: func() {}, expectedSync: true, expectedAsync: 0},
		{name: "error-returning func", fn: func() error { return nil }, expectedSync: true, expectedAsync: 0},
		{name: "value-returning func", fn: func() any { return nil }, expectedSync: true, expectedAsync: 0},
		{name: "callback func", fn: func(Done) {}, expectedSync: false, expectedAsync: 1},
		{name: "nil func is pending", fn: nil, expectedSync: true, expectedAsync: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New("t", tt.fn)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedSync, r.Sync())
			assert.Equal(t, tt.expectedAsync, r.Async())
		})
	}
}

func TestNewRejectsUnsupportedFunc(t *testing.T) {
	_, err := New("bad", func(int) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported runnable func type")
}

func TestNewWithoutFuncIsPending(t *testing.T) {
	r, err := New("no fn", nil)
	require.NoError(t, err)
	assert.True(t, r.IsPending())
}

func TestTimeoutSetter(t *testing.T) {
	r, err := New("t", func() {})
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeout, r.Timeout())

	require.NoError(t, r.SetTimeout("1s"))
	assert.Equal(t, time.Second, r.Timeout())

	require.NoError(t, r.SetTimeout(250))
	assert.Equal(t, 250*time.Millisecond, r.Timeout())

	require.NoError(t, r.SetTimeout(500*time.Millisecond))
	assert.Equal(t, 500*time.Millisecond, r.Timeout())

	// nil leaves the current value untouched
	require.NoError(t, r.SetTimeout(nil))
	assert.Equal(t, 500*time.Millisecond, r.Timeout())

	assert.Error(t, r.SetTimeout("not a duration"))
	assert.Error(t, r.SetTimeout(struct{}{}))
}

func TestTimeoutAboveTimerLimitDisablesTimeouts(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		disabled bool
	}{
		{name: "exactly 2^31 ms", value: int64(1) << 31, disabled: true},
		{name: "above 2^31 ms", value: (time.Duration(1)<<31 + 1) * time.Millisecond, disabled: true},
		{name: "below 2^31 ms", value: int64(1)<<31 - 1, disabled: false},
		// Values past the nanosecond representation saturate instead of
		// wrapping, so they still land above the disable threshold.
		{name: "overflowing int ms", value: int(1) << 62, disabled: true},
		{name: "overflowing int64 ms", value: int64(math.MaxInt64), disabled: true},
		{name: "overflowing float ms", value: float64(1e30), disabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New("t", func() {})
			require.NoError(t, err)
			require.True(t, r.TimeoutsEnabled())
			require.NoError(t, r.SetTimeout(tt.value))
			assert.Equal(t, tt.disabled, !r.TimeoutsEnabled())
		})
	}
}

func TestSlowSetter(t *testing.T) {
	r, err := New("t", func() {})
	require.NoError(t, err)

	assert.Equal(t, DefaultSlow, r.Slow())

	require.NoError(t, r.SetSlow(nil))
	assert.Equal(t, DefaultSlow, r.Slow(), "nil must not overwrite the default")

	require.NoError(t, r.SetSlow("1s"))
	assert.Equal(t, time.Second, r.Slow())

	require.NoError(t, r.SetSlow(nil))
	assert.Equal(t, time.Second, r.Slow(), "nil must not overwrite a set value")

	require.NoError(t, r.SetSlow(100))
	assert.Equal(t, 100*time.Millisecond, r.Slow())
}

func TestTitlePath(t *testing.T) {
	parent := types.NewSuite("foo", nil)
	r, err := New("bar", func() {})
	require.NoError(t, err)
	r.SetParent(parent)

	assert.Equal(t, []string{"foo", "bar"}, r.TitlePath())
	assert.Equal(t, "foo bar", r.FullTitle())
}

func TestPendingRunSkipsFunc(t *testing.T) {
	invoked := false
	r, err := New("pending", func() { invoked = true })
	require.NoError(t, err)
	r.SetPending(true)

	err = runToCompletion(t, r)
	assert.NoError(t, err)
	assert.False(t, invoked, "fn must never be invoked for a pending runnable")
}

func TestPendingInheritedFromSuite(t *testing.T) {
	suite := types.NewSuite("group", nil)
	suite.Pending = true

	invoked := false
	r, err := New("child", func() { invoked = true })
	require.NoError(t, err)
	r.SetParent(suite)

	require.True(t, r.IsPending())
	assert.NoError(t, runToCompletion(t, r))
	assert.False(t, invoked)
}

func TestSyncPanicIsReported(t *testing.T) {
	r, err := New("boom", func() {
		panic(errors.New("fail"))
	})
	require.NoError(t, err)

	runErr := runToCompletion(t, r)
	require.Error(t, runErr)
	assert.Equal(t, "fail", runErr.Error())
}

func TestSyncNonErrorPanicIsNormalized(t *testing.T) {
	r, err := New("boom", func() {
		panic("exploded")
	})
	require.NoError(t, err)

	runErr := runToCompletion(t, r)
	require.Error(t, runErr)
	assert.Equal(t, "exploded", runErr.Error())
}

func TestSyncErrorReturnIsReported(t *testing.T) {
	r, err := New("failing", func() error {
		return errors.New("bad state")
	})
	require.NoError(t, err)
	assert.EqualError(t, runToCompletion(t, r), "bad state")

	ok, err := New("passing", func() error { return nil })
	require.NoError(t, err)
	assert.NoError(t, runToCompletion(t, ok))
}

func TestAllowUncaughtPropagatesPanic(t *testing.T) {
	r, err := New("boom", func() {
		panic(errors.New("unhandled"))
	})
	require.NoError(t, err)
	r.SetAllowUncaught(true)

	calls := 0
	assert.PanicsWithError(t, "unhandled", func() {
		r.Run(func(error) { calls++ })
	})
	assert.Zero(t, calls, "callback must not fire when the panic propagates")
}

func TestAsyncCompletion(t *testing.T) {
	r, err := New("async", func(done Done) {
		go func() {
			time.Sleep(time.Millisecond)
			done(nil)
		}()
	})
	require.NoError(t, err)
	assert.NoError(t, runToCompletion(t, r))
}

func TestAsyncCompletionWithError(t *testing.T) {
	r, err := New("async", func(done Done) {
		done(errors.New("async fail"))
	})
	require.NoError(t, err)
	assert.EqualError(t, runToCompletion(t, r), "async fail")
}

func TestAsyncCompletionWithFalsyValues(t *testing.T) {
	for _, failure := range []any{nil, false, "", 0, 0.0} {
		r, err := New("async", func(done Done) {
			done(failure)
		})
		require.NoError(t, err)
		assert.NoError(t, runToCompletion(t, r), "falsy value %#v must mean success", failure)
	}
}

func TestAsyncCompletionWithNonError(t *testing.T) {
	tests := []struct {
		name     string
		failure  any
		expected string
	}{
		{
			name:     "string",
			failure:  "whoops",
			expected: `done() invoked with non-Error: whoops`,
		},
		{
			name:     "number",
			failure:  42,
			expected: `done() invoked with non-Error: 42`,
		},
		{
			name:     "map is JSON serialized",
			failure:  map[string]int{"code": 7},
			expected: `done() invoked with non-Error: {"code":7}`,
		},
		{
			name:     "struct is JSON serialized",
			failure:  struct{ Reason string }{Reason: "nope"},
			expected: `done() invoked with non-Error: {"Reason":"nope"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New("async", func(done Done) {
				done(tt.failure)
			})
			require.NoError(t, err)
			runErr := runToCompletion(t, r)
			require.Error(t, runErr)
			assert.True(t, IsNonErrorCompletionError(runErr))
			assert.Equal(t, tt.expected, runErr.Error())
		})
	}
}

func TestAsyncPanicDuringCall(t *testing.T) {
	r, err := New("async", func(done Done) {
		panic(errors.New("sync portion failed"))
	})
	require.NoError(t, err)
	assert.EqualError(t, runToCompletion(t, r), "sync portion failed")
}

func TestDoneCalledMultipleTimesWithoutError(t *testing.T) {
	var done Done
	r, err := New("multi", func(d Done) {
		done = d
		d(nil)
	})
	require.NoError(t, err)

	collector := &errorCollector{}
	r.OnError(collector.handler)

	calls := 0
	r.Run(func(err error) {
		calls++
		assert.NoError(t, err)
	})

	// Three extra completions through different scheduling mechanisms.
	done(nil)
	go done(nil)
	time.AfterFunc(2*time.Millisecond, func() { done(nil) })

	require.Eventually(t, func() bool {
		return len(collector.snapshot()) >= 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	events := collector.snapshot()
	require.Len(t, events, 1, "only the first extra completion may be surfaced")
	assert.EqualError(t, events[0], "done() called multiple times")
	assert.Equal(t, 1, calls)
}

func TestDoneCalledMultipleTimesAfterError(t *testing.T) {
	var done Done
	r, err := New("multi", func(d Done) {
		done = d
		d(errors.New("first failure"))
	})
	require.NoError(t, err)

	collector := &errorCollector{}
	r.OnError(collector.handler)

	calls := 0
	r.Run(func(err error) {
		calls++
		assert.EqualError(t, err, "first failure")
	})

	done(nil)
	done(errors.New("second failure"))

	events := collector.snapshot()
	require.Len(t, events, 1)
	assert.EqualError(t, events[0], "first failure (and Mocha's done() called multiple times)")
	assert.True(t, IsMultipleCompletionsError(events[0]))
	assert.Equal(t, 1, calls)
}

func TestDoneExtraCallCarryingErrorIsSurfaced(t *testing.T) {
	var done Done
	r, err := New("multi", func(d Done) {
		done = d
		d(nil)
	})
	require.NoError(t, err)

	collector := &errorCollector{}
	r.OnError(collector.handler)
	r.Run(func(err error) { assert.NoError(t, err) })

	done(errors.New("late failure"))

	events := collector.snapshot()
	require.Len(t, events, 1)
	assert.EqualError(t, events[0], "late failure (and Mocha's done() called multiple times)")
	assert.True(t, IsMultipleCompletionsError(events[0]))
}

func TestSkipSync(t *testing.T) {
	var r *Runnable
	reached := false
	r, err := New("skipped", func() {
		r.Skip()
		reached = true
	})
	require.NoError(t, err)

	assert.NoError(t, runToCompletion(t, r))
	assert.False(t, reached, "Skip must abort the remaining statements")
	assert.True(t, r.IsPending())
}

func TestSkipAsync(t *testing.T) {
	var r *Runnable
	r, err := New("skipped", func(done Done) {
		r.Skip()
	})
	require.NoError(t, err)

	assert.NoError(t, runToCompletion(t, r))
	assert.True(t, r.IsPending(), "skip must surface as pending, not as a failure")
}

func TestSkipOutsideRunPropagates(t *testing.T) {
	r, err := New("standalone", func() {})
	require.NoError(t, err)

	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		pendingErr, ok := rec.(*PendingError)
		require.True(t, ok)
		assert.Equal(t, "sync skip; aborting execution", pendingErr.Error())
	}()
	r.Skip()
}

func TestIsFailedPendingPrecedence(t *testing.T) {
	r, err := New("t", func() {})
	require.NoError(t, err)

	assert.False(t, r.IsFailed())

	r.SetState(StateFailed)
	assert.True(t, r.IsFailed())

	r.SetPending(true)
	assert.False(t, r.IsFailed(), "pending must override a failed state")
	assert.False(t, r.IsPassed())
}

func TestRetriesCounter(t *testing.T) {
	r, err := New("t", func() {})
	require.NoError(t, err)

	assert.Zero(t, r.Retries())
	r.SetRetries(3)
	assert.Equal(t, 3, r.Retries())

	r.SetCurrentRetry(2)
	assert.Equal(t, 2, r.CurrentRetry())
}

func TestGlobalsAreStoredAndCopied(t *testing.T) {
	r, err := New("t", func() {})
	require.NoError(t, err)

	input := []string{"app", "YUI"}
	r.SetGlobals(input)
	input[0] = "mutated"

	assert.Equal(t, []string{"app", "YUI"}, r.Globals())
}

func TestDurationIsPopulated(t *testing.T) {
	r, err := New("t", func() {
		time.Sleep(5 * time.Millisecond)
	})
	require.NoError(t, err)

	var during time.Duration
	r.Run(func(err error) {
		require.NoError(t, err)
		during = r.Duration()
	})
	assert.GreaterOrEqual(t, during, 5*time.Millisecond, "duration must be set before the callback runs")
}

func TestResetClearsRunObservables(t *testing.T) {
	r, err := New("t", func() error {
		return errors.New("first run fails")
	})
	require.NoError(t, err)

	require.Error(t, runToCompletion(t, r))
	r.SetState(StateFailed)

	r.Reset()
	assert.NoError(t, r.Err())
	assert.Zero(t, r.Duration())
	assert.False(t, r.TimedOut())
	assert.Equal(t, StateUnset, r.State())
}
