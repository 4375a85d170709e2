package synchronization

import (
	"time"
)

// Ticker paces state broadcasts. It ticks once per period, but an event can
// request an early tick which is granted if the cooldown has passed since the
// last tick. A denied early tick is rescheduled to happen once the cooldown
// has passed.
type Ticker struct {
	lastTick time.Time
	current  time.Duration
	period   time.Duration
	cooldown time.Duration
	now      func() time.Time
}

// NewTicker returns a ticker whose first tick is one period from now. A
// period shorter than the cooldown is raised to the cooldown.
func NewTicker(period time.Duration, cooldown time.Duration) *Ticker {
	if period < cooldown {
		period = cooldown
	}
	return &Ticker{
		lastTick: time.Now(),
		current:  period,
		period:   period,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// TryTick ticks if at least the cooldown has passed since the last tick. If
// not, the next tick is moved to one cooldown after the last one.
func (t *Ticker) TryTick() bool {
	now := t.now()
	if now.Sub(t.lastTick) >= t.cooldown {
		t.lastTick = now
		t.current = t.period
		return true
	}
	t.current = t.cooldown
	return false
}

// Remaining returns the time left until the next scheduled tick, zero if it
// is due.
func (t *Ticker) Remaining() time.Duration {
	remaining := t.current - t.now().Sub(t.lastTick)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Tick records a scheduled tick.
func (t *Ticker) Tick() {
	t.lastTick = t.now()
	t.current = t.period
}
