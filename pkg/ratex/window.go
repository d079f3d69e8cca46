package ratex

import (
	"sync"
	"time"
)

// WindowLimiter admits at most Events per key in any sliding Window. Unlike
// KeyedLimiter it never refills early: the oldest event must leave the window
// before another is admitted.
type WindowLimiter struct {
	cfg Config

	mu        sync.Mutex
	events    map[string][]time.Time
	lastSweep time.Time
}

func NewWindowLimiter(cfg Config) *WindowLimiter {
	if cfg.Events <= 0 {
		cfg.Events = 1
	}
	return &WindowLimiter{cfg: cfg, events: make(map[string][]time.Time), lastSweep: time.Now()}
}

// Config returns the parameters the limiter was built with.
func (w *WindowLimiter) Config() Config { return w.cfg }

// AllowAt records an event for key at now when fewer than Events happened in
// (now-Window, now].
func (w *WindowLimiter) AllowAt(key string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.maybeSweep(now)

	live := w.prune(w.events[key], now)
	if len(live) >= w.cfg.Events {
		w.events[key] = live
		return false
	}
	w.events[key] = append(live, now)
	return true
}

// RetryAfter reports how long until key may have another event. It does not
// record anything.
func (w *WindowLimiter) RetryAfter(key string, now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	live := w.prune(w.events[key], now)
	if len(live) < w.cfg.Events {
		return 0
	}
	return live[len(live)-w.cfg.Events].Add(w.cfg.Window).Sub(now)
}

// Reset forgets every event recorded for key.
func (w *WindowLimiter) Reset(key string) {
	w.mu.Lock()
	delete(w.events, key)
	w.mu.Unlock()
}

// Len counts tracked keys.
func (w *WindowLimiter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

// prune drops events at or before now-Window. ts is sorted ascending.
func (w *WindowLimiter) prune(ts []time.Time, now time.Time) []time.Time {
	if w.cfg.Window <= 0 {
		return ts[:0]
	}
	cutoff := now.Add(-w.cfg.Window)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

func (w *WindowLimiter) maybeSweep(now time.Time) {
	if now.Sub(w.lastSweep) < idleSweepInterval {
		return
	}
	w.lastSweep = now

	for key, ts := range w.events {
		if len(w.prune(ts, now)) == 0 {
			delete(w.events, key)
		}
	}
}
