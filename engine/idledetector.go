package engine

import (
	"sync"
	"time"
)

// timerIdleDetector is the default IdleDetector: a single timer reset on
// every Touch, firing onIdle and rearming itself whenever it elapses
// without having been touched in the meantime. It generalizes the
// teacher library's internal/websocket.Connection.keepAlive ticker,
// which fired unconditionally every 30 seconds; here "idle" specifically
// means no I/O observed during the interval, not merely its passage.
type timerIdleDetector struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	stopped  bool
}

// NewTimerIdleDetector returns an IdleDetector backed by time.Timer.
func NewTimerIdleDetector() IdleDetector {
	return &timerIdleDetector{}
}

func (d *timerIdleDetector) Start(interval time.Duration, onIdle func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || interval <= 0 {
		return
	}
	d.interval = interval
	d.timer = time.AfterFunc(interval, func() { d.fire(onIdle) })
}

func (d *timerIdleDetector) fire(onIdle func()) {
	d.mu.Lock()
	stopped := d.stopped
	interval := d.interval
	if !stopped {
		d.timer = time.AfterFunc(interval, func() { d.fire(onIdle) })
	}
	d.mu.Unlock()

	if !stopped {
		onIdle()
	}
}

func (d *timerIdleDetector) Touch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil && !d.stopped {
		d.timer.Reset(d.interval)
	}
}

func (d *timerIdleDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
