// Package runnable implements the execution core of the harness: running a
// single unit of test logic exactly once to a definitive outcome (success,
// failure, timeout or skip) regardless of whether the logic is synchronous,
// callback-based or promise-like.
package runnable

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/timeparse"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

const (
	// DefaultTimeout is the baseline execution limit for a fresh runnable.
	DefaultTimeout = 2 * time.Second
	// DefaultSlow is the baseline advisory slow threshold.
	DefaultSlow = 75 * time.Millisecond

	// maxArmableMillis is the largest countdown the underlying timer
	// mechanism is allowed to represent. Setting a timeout at or above it
	// disables timeouts instead of arming an unrepresentable countdown.
	maxArmableMillis = int64(1) << 31
)

// State is the pass/fail classification assigned to a runnable by an external
// runner. The core itself never sets it.
type State string

const (
	StateUnset  State = ""
	StatePassed State = "passed"
	StateFailed State = "failed"
)

// Runnable is one executable unit of test logic together with its configured
// timeout/slow/retry/skip settings. A Runnable is exclusively owned by the
// currently in-flight Run call; Run must not be invoked concurrently with
// itself on the same instance.
type Runnable struct {
	title  string
	parent *types.Suite

	kind      fnKind
	callSync  func() (any, error)
	callAsync func(Done)

	timeout         time.Duration
	timeoutsEnabled bool
	slow            time.Duration
	retries         int
	currentRetry    int
	globals         []string
	file            string
	allowUncaught   bool
	pending         bool
	state           State

	errorHandlers []func(error)

	// Per-run completion state, owned by the in-flight Run and its timeout
	// controller. The mutex is the completion guard's idempotence barrier.
	mu           sync.Mutex
	ctl          *timeoutController
	start        time.Time
	finished     bool
	extraEmitted bool
	firstErr     error
	duration     time.Duration
	timedOut     bool
}

// New creates a runnable from a title and a user func. Accepted func shapes
// are func(), func() error, func() any and func(Done); the classification is
// fixed here and never re-inspected. A nil fn yields a pending runnable.
func New(title string, fn any) (*Runnable, error) {
	kind, callSync, callAsync, err := normalizeFn(fn)
	if err != nil {
		return nil, fmt.Errorf("runnable %q: %w", title, err)
	}
	return &Runnable{
		title:           title,
		kind:            kind,
		callSync:        callSync,
		callAsync:       callAsync,
		timeout:         DefaultTimeout,
		timeoutsEnabled: true,
		slow:            DefaultSlow,
		pending:         kind == fnNone,
	}, nil
}

// Title returns the runnable's label.
func (r *Runnable) Title() string {
	return r.title
}

// Parent returns the enclosing suite, if any.
func (r *Runnable) Parent() *types.Suite {
	return r.parent
}

// SetParent attaches the runnable to an enclosing suite. The suite is only
// read for title-path composition and pending inheritance, never mutated.
func (r *Runnable) SetParent(parent *types.Suite) {
	r.parent = parent
}

// TitlePath returns the ordered titles from the outermost suite down to this
// runnable's own title.
func (r *Runnable) TitlePath() []string {
	return append(r.parent.TitlePath(), r.title)
}

// FullTitle returns the title path joined with spaces.
func (r *Runnable) FullTitle() string {
	path := r.TitlePath()
	full := ""
	for i, part := range path {
		if i > 0 {
			full += " "
		}
		full += part
	}
	return full
}

// Sync reports whether the outcome is known when the user func returns.
func (r *Runnable) Sync() bool {
	return r.kind != fnAsync
}

// Async returns the number of completion-callback parameters the user func
// declares: 1 for callback-based funcs, 0 otherwise.
func (r *Runnable) Async() int {
	if r.kind == fnAsync {
		return 1
	}
	return 0
}

// Timeout returns the configured execution limit. Zero means no timeout.
func (r *Runnable) Timeout() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeout
}

// SetTimeout sets the execution limit from milliseconds (any integer or float
// type), a time.Duration, or a human duration string such as "1s". A nil
// value is a no-op. A value of 2^31 milliseconds or more cannot be armed by
// the underlying timer and disables timeouts as a side effect.
func (r *Runnable) SetTimeout(v any) error {
	d, ok, err := coerceDuration(v)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if !ok {
		return nil
	}
	r.mu.Lock()
	r.timeout = d
	if d.Milliseconds() >= maxArmableMillis {
		r.timeoutsEnabled = false
	}
	r.mu.Unlock()
	// Re-arm an in-flight countdown with the new limit.
	r.ResetTimeout()
	return nil
}

// Slow returns the advisory slow threshold. It never affects control flow;
// reporting uses it for classification only.
func (r *Runnable) Slow() time.Duration {
	return r.slow
}

// SetSlow sets the slow threshold with the same value grammar as SetTimeout.
// A nil value is a no-op.
func (r *Runnable) SetSlow(v any) error {
	d, ok, err := coerceDuration(v)
	if err != nil {
		return fmt.Errorf("invalid slow threshold: %w", err)
	}
	if !ok {
		return nil
	}
	r.slow = d
	return nil
}

// TimeoutsEnabled reports whether the timeout controller may arm at all.
func (r *Runnable) TimeoutsEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeoutsEnabled
}

// SetEnableTimeouts enables or disables the timeout controller.
func (r *Runnable) SetEnableTimeouts(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeoutsEnabled = enabled
}

// Retries returns the configured retry allowance. The core keeps the counter
// only; re-running is the external runner's decision.
func (r *Runnable) Retries() int {
	return r.retries
}

// SetRetries sets the retry allowance.
func (r *Runnable) SetRetries(n int) {
	r.retries = n
}

// CurrentRetry returns how many re-runs the external runner has performed.
func (r *Runnable) CurrentRetry() int {
	return r.currentRetry
}

// SetCurrentRetry records the current re-run ordinal.
func (r *Runnable) SetCurrentRetry(n int) {
	r.currentRetry = n
}

// Globals returns the identifiers whitelisted for the external leak-detection
// collaborator. The core itself performs no leak detection.
func (r *Runnable) Globals() []string {
	out := make([]string, len(r.globals))
	copy(out, r.globals)
	return out
}

// SetGlobals records identifiers to whitelist for leak detection.
func (r *Runnable) SetGlobals(names []string) {
	r.globals = make([]string, len(names))
	copy(r.globals, names)
}

// File returns the source location of the runnable, when known.
func (r *Runnable) File() string {
	return r.file
}

// SetFile records the source location; it only enriches timeout messages.
func (r *Runnable) SetFile(file string) {
	r.file = file
}

// AllowUncaught reports whether synchronous panics from the user func
// propagate to the caller of Run instead of being captured as the outcome.
func (r *Runnable) AllowUncaught() bool {
	return r.allowUncaught
}

// SetAllowUncaught toggles panic propagation for synchronous user logic.
func (r *Runnable) SetAllowUncaught(allow bool) {
	r.allowUncaught = allow
}

// IsPending reports whether the runnable is excluded from execution, either
// directly or through a pending ancestor suite.
func (r *Runnable) IsPending() bool {
	return r.pending || r.parent.IsPending()
}

// SetPending marks the runnable as skipped without invoking its func.
func (r *Runnable) SetPending(pending bool) {
	r.pending = pending
}

// State returns the classification assigned by the external runner.
func (r *Runnable) State() State {
	return r.state
}

// SetState records the external runner's classification.
func (r *Runnable) SetState(state State) {
	r.state = state
}

// IsFailed reports whether the runnable failed. Pending always overrides the
// state value: a pending runnable is never failed.
func (r *Runnable) IsFailed() bool {
	return !r.IsPending() && r.state == StateFailed
}

// IsPassed reports whether the runnable passed and is not pending.
func (r *Runnable) IsPassed() bool {
	return !r.IsPending() && r.state == StatePassed
}

// Duration returns the elapsed time of the most recent run.
func (r *Runnable) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

// TimedOut reports whether the timeout controller forced the most recent
// outcome. It is observable only after Run's completion callback has
// returned, never during it.
func (r *Runnable) TimedOut() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timedOut
}

// Err returns the error of the most recent run, if any.
func (r *Runnable) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstErr
}

// OnError subscribes a handler to the out-of-band error channel. The
// completion guard delivers at most one intercepted-extra-completion error
// per execution through it; it is independent of Run's completion callback.
func (r *Runnable) OnError(handler func(error)) {
	if handler != nil {
		r.errorHandlers = append(r.errorHandlers, handler)
	}
}

// Skip marks the calling execution as pending and aborts the remaining
// synchronous statements of the user func by panicking with a PendingError.
// Within Run the invocation adapter converts the signal into a skip outcome;
// outside Run it propagates to the caller.
func (r *Runnable) Skip() {
	panic(NewPendingError("sync skip; aborting execution"))
}

// ResetTimeout restarts the in-flight countdown using the current timeout
// settings. Outside of a run it is a no-op.
func (r *Runnable) ResetTimeout() {
	r.mu.Lock()
	ctl, limit, enabled := r.ctl, r.timeout, r.timeoutsEnabled
	r.mu.Unlock()
	if ctl != nil {
		ctl.reset(limit, enabled)
	}
}

// Reset clears the observables of the previous run so an external runner can
// re-execute the runnable, e.g. for retries. Configuration is kept.
func (r *Runnable) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duration = 0
	r.timedOut = false
	r.firstErr = nil
	r.state = StateUnset
}

// Run executes the user func once and delivers exactly one outcome through
// callback: nil for success or skip, an error otherwise. Extra completions
// surface as at most one event on the error channel; completions arriving
// after a timeout fired are silently dropped. A pending runnable completes
// immediately without invoking its func.
func (r *Runnable) Run(callback func(error)) {
	if callback == nil {
		callback = func(error) {}
	}

	r.mu.Lock()
	r.start = time.Now()
	r.finished = false
	r.extraEmitted = false
	r.firstErr = nil
	r.duration = 0
	r.timedOut = false
	r.mu.Unlock()

	if r.IsPending() || r.kind == fnNone {
		callback(nil)
		return
	}

	ctl := newTimeoutController(func(limit time.Duration) {
		r.finish(&TimeoutError{Limit: limit, File: r.file}, callback, completionTimeout)
	})
	r.mu.Lock()
	r.ctl = ctl
	r.mu.Unlock()

	if r.kind == fnAsync {
		r.ResetTimeout()
		r.runAsync(callback)
		return
	}
	r.runSync(callback)
}

// runSync calls the user func inside a failure boundary and interprets its
// return value, treating a Thenable result as a promise.
func (r *Runnable) runSync(callback func(error)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.recoverInvocation(rec, callback)
		}
	}()

	result, err := r.callSync()
	if err != nil {
		r.finish(err, callback, completionSync)
		return
	}

	if th, ok := result.(Thenable); ok {
		// A promise result turns the run asynchronous: arm the countdown
		// and wait for settlement.
		r.ResetTimeout()
		th.Then(
			func(any) { r.finish(nil, callback, completionAsync) },
			func(reason any) { r.finish(normalizeRejection(reason), callback, completionAsync) },
		)
		return
	}

	// Any other return value completes the run successfully; the value is
	// discarded.
	r.finish(nil, callback, completionSync)
}

// runAsync calls the user func with a guarded completion callback. A panic
// during the call itself is handled exactly like the synchronous case.
func (r *Runnable) runAsync(callback func(error)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.recoverInvocation(rec, callback)
		}
	}()

	r.callAsync(func(failure any) {
		r.finish(normalizeCompletion(failure), callback, completionAsync)
	})
}

// recoverInvocation translates a panic out of the user func: a PendingError
// becomes a skip outcome, anything else is the run's error unless
// allowUncaught re-raises it to the caller of Run.
func (r *Runnable) recoverInvocation(rec any, callback func(error)) {
	if _, ok := rec.(*PendingError); ok {
		// A skip outcome is exempt from the sync-overrun conversion.
		r.pending = true
		r.finish(nil, callback, completionAsync)
		return
	}
	if r.allowUncaught {
		panic(rec)
	}
	r.finish(toError(rec), callback, completionSync)
}

// completionSource records where a completion entered the funnel. The
// sync-overrun backstop applies only to synchronous returns; an asynchronous
// countdown may have been legitimately restarted mid-run.
type completionSource uint8

const (
	completionAsync completionSource = iota
	completionSync
	completionTimeout
)

// finish is the single completion funnel. The first call per run wins and
// invokes the caller's callback exactly once; every later call is either
// dropped (after the countdown fired) or converted into one error-channel
// event.
func (r *Runnable) finish(err error, callback func(error), src completionSource) {
	r.mu.Lock()

	if src != completionTimeout && r.ctl != nil && r.ctl.fired() {
		// Expiry owns the outcome from the moment the countdown fires,
		// even while its delivery is still in flight; completions racing
		// with or trailing it are expected and silently discarded.
		r.mu.Unlock()
		return
	}

	if r.finished {
		if src == completionTimeout || r.extraEmitted {
			r.mu.Unlock()
			return
		}
		r.extraEmitted = true
		extra := r.duplicateCompletionError(err)
		r.mu.Unlock()
		r.emitError(extra)
		return
	}

	r.finished = true
	elapsed := time.Since(r.start)

	// A synchronous func that overran a countdown which never got the
	// chance to fire still times out.
	if err == nil && src == completionSync && r.timeoutsEnabled && r.timeout > 0 && elapsed > r.timeout {
		err = &TimeoutError{Limit: r.timeout, File: r.file}
	}

	r.firstErr = err
	r.duration = elapsed
	ctl := r.ctl
	r.mu.Unlock()

	if ctl != nil && src != completionTimeout {
		ctl.clear()
	}

	callback(err)

	if src == completionTimeout {
		r.mu.Lock()
		r.timedOut = true
		r.mu.Unlock()
	}
}

// duplicateCompletionError derives the error-channel payload for an
// intercepted extra completion. The error the run completed with wins when
// present; otherwise an error carried by the extra call itself wins; either
// way the fixed multiple-completions suffix is appended. With no error on any
// side the fixed message stands alone.
func (r *Runnable) duplicateCompletionError(err error) error {
	if r.firstErr != nil {
		return &MultipleCompletionsError{First: r.firstErr}
	}
	return &MultipleCompletionsError{First: err}
}

func (r *Runnable) emitError(err error) {
	for _, handler := range r.errorHandlers {
		handler(err)
	}
}

// coerceDuration maps the polymorphic setter argument to a duration. The
// boolean result is false when the argument is nil, which callers treat as
// "leave the current value unchanged".
func coerceDuration(v any) (time.Duration, bool, error) {
	switch value := v.(type) {
	case nil:
		return 0, false, nil
	case time.Duration:
		return value, true, nil
	case string:
		d, err := timeparse.Parse(value)
		if err != nil {
			return 0, false, err
		}
		return d, true, nil
	case int:
		return millisToDuration(int64(value)), true, nil
	case int32:
		return millisToDuration(int64(value)), true, nil
	case int64:
		return millisToDuration(value), true, nil
	case float64:
		ns := value * float64(time.Millisecond)
		if ns >= float64(math.MaxInt64) {
			return time.Duration(math.MaxInt64), true, nil
		}
		if ns <= float64(math.MinInt64) {
			return time.Duration(math.MinInt64), true, nil
		}
		return time.Duration(ns), true, nil
	default:
		return 0, false, fmt.Errorf("unsupported duration type %T", v)
	}
}

// millisToDuration converts milliseconds to a duration, saturating instead of
// wrapping so huge values still satisfy the timeout-disable threshold.
func millisToDuration(ms int64) time.Duration {
	if ms > math.MaxInt64/int64(time.Millisecond) {
		return time.Duration(math.MaxInt64)
	}
	if ms < math.MinInt64/int64(time.Millisecond) {
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ms) * time.Millisecond
}
