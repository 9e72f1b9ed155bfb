package router

import (
	"log/slog"
	"sync"
	"time"
)

// RateLimiter enforces per-identity command budgets over fixed windows.
// The first occurrence of a key opens a window that reclaims itself with
// a timer when the window rolls over; Stop cancels whatever timers are
// still pending at shutdown.
type RateLimiter struct {
	logger  *slog.Logger
	mu      sync.Mutex
	windows map[string]*rateWindow
	stopped bool
}

type rateWindow struct {
	count int
	timer *time.Timer
}

func NewRateLimiter(logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		logger:  logger.With(slog.String("component", "rate_limiter")),
		windows: make(map[string]*rateWindow),
	}
}

// Allow reports whether one more occurrence of command fits the budget of
// limit per window for this identity. A non-positive limit or window
// disables the check.
func (l *RateLimiter) Allow(identityID, command string, limit int, window time.Duration) bool {
	if limit <= 0 || window <= 0 {
		return true
	}
	key := identityID + "|" + command

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return true
	}

	w, ok := l.windows[key]
	if !ok {
		w = &rateWindow{count: 1}
		w.timer = time.AfterFunc(window, func() {
			l.mu.Lock()
			delete(l.windows, key)
			l.mu.Unlock()
		})
		l.windows[key] = w
		return true
	}

	if w.count >= limit {
		l.logger.Debug("Rate limit exceeded",
			slog.String("identityID", identityID),
			slog.String("command", command),
			slog.Int("limit", limit),
		)
		return false
	}
	w.count++
	return true
}

// Stop cancels every pending window timer. Allow becomes a no-op after.
func (l *RateLimiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	for key, w := range l.windows {
		w.timer.Stop()
		delete(l.windows, key)
	}
}
