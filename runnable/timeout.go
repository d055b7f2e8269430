package runnable

import (
	"sync"
	"time"
)

// timeoutState tracks the lifecycle of one execution's countdown.
type timeoutState uint8

const (
	timeoutIdle timeoutState = iota
	timeoutArmed
	timeoutFired
	timeoutCleared
)

// timeoutController is the arming/resetting countdown associated with a single
// execution. Expiry and natural completion race; whichever transitions the
// state first wins and the other becomes a no-op.
type timeoutController struct {
	mu     sync.Mutex
	state  timeoutState
	timer  *time.Timer
	expire func(limit time.Duration)
}

func newTimeoutController(expire func(limit time.Duration)) *timeoutController {
	return &timeoutController{expire: expire}
}

// reset (re)arms the countdown with the given limit. Arming is a no-op when
// timeouts are disabled or the limit is zero; a pending countdown is always
// cancelled first. Once fired or cleared the controller stays inert.
func (t *timeoutController) reset(limit time.Duration, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == timeoutFired || t.state == timeoutCleared {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if !enabled || limit <= 0 {
		t.state = timeoutIdle
		return
	}
	t.state = timeoutArmed
	t.timer = time.AfterFunc(limit, func() {
		t.fire(limit)
	})
}

// clear cancels the countdown on natural completion. No late firing is
// possible afterwards.
func (t *timeoutController) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.state == timeoutArmed || t.state == timeoutIdle {
		t.state = timeoutCleared
	}
}

func (t *timeoutController) fire(limit time.Duration) {
	t.mu.Lock()
	if t.state != timeoutArmed {
		t.mu.Unlock()
		return
	}
	t.state = timeoutFired
	t.timer = nil
	t.mu.Unlock()

	t.expire(limit)
}

func (t *timeoutController) fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == timeoutFired
}
