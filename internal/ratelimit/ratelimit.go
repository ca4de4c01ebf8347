// Package ratelimit throttles inbound chat messages per user.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter allows up to N messages per user in a one-minute window.
type Limiter struct {
	mu           sync.Mutex
	users        map[int64]*userWindow
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time

	messagesPerMinute int
	cleanupInterval   time.Duration
	dropped           int64
}

type userWindow struct {
	start    time.Time
	messages int
}

// Config holds rate limiter configuration
type Config struct {
	MessagesPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MessagesPerMinute: 30,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter starts a limiter with a background sweep of idle users.
// Call Stop to release it.
func NewLimiter(config Config) *Limiter {
	l := newLimiter(config, time.Now)
	go l.startCleanup()
	return l
}

func newLimiter(config Config, now func() time.Time) *Limiter {
	if config.MessagesPerMinute <= 0 {
		config.MessagesPerMinute = DefaultConfig().MessagesPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	return &Limiter{
		users:             make(map[int64]*userWindow),
		stopCleanup:       make(chan struct{}),
		now:               now,
		messagesPerMinute: config.MessagesPerMinute,
		cleanupInterval:   config.CleanupInterval,
	}
}

// Allow reports whether a message from userID may be processed.
func (l *Limiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.users[userID]
	if !ok || now.Sub(w.start) >= time.Minute {
		l.users[userID] = &userWindow{start: now, messages: 1}
		return true
	}

	w.messages++
	if w.messages > l.messagesPerMinute {
		l.dropped++
		return false
	}
	return true
}

func (l *Limiter) startCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStale()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanupStale forgets users whose window closed more than ten minutes ago.
func (l *Limiter) cleanupStale() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-10 * time.Minute)
	removed := 0
	for id, w := range l.users {
		if w.start.Before(cutoff) {
			delete(l.users, id)
			removed++
		}
	}
	return removed
}

// ActiveUsers returns the number of tracked users
func (l *Limiter) ActiveUsers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

// Dropped returns how many messages were rejected so far.
func (l *Limiter) Dropped() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Stop shuts down the cleanup goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}
