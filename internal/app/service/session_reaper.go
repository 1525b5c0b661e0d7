package service

import (
	"time"

	"go.uber.org/zap"
)

// SessionSweeper drops conversation states untouched since before.
type SessionSweeper interface {
	Reap(before time.Time) int
	Len() int
}

// SessionReaper periodically discards abandoned conversations.
type SessionReaper struct {
	logger   *zap.Logger
	sessions SessionSweeper
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
}

// NewSessionReaper creates a reaper that drops sessions idle for longer than ttl.
func NewSessionReaper(logger *zap.Logger, sessions SessionSweeper, ttl time.Duration) *SessionReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return &SessionReaper{
		logger:   logger,
		sessions: sessions,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (r *SessionReaper) Start() {
	go r.run()
}

// Stop stops the periodic sweep.
func (r *SessionReaper) Stop() {
	close(r.stopChan)
}

func (r *SessionReaper) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopChan:
			r.logger.Info("session reaper stopped")
			return
		}
	}
}

func (r *SessionReaper) sweep() int {
	expiredBefore := r.now().Add(-r.ttl)

	removed := r.sessions.Reap(expiredBefore)
	if removed > 0 {
		r.logger.Info("discarded idle conversations",
			zap.Int("count", removed),
			zap.Int("active", r.sessions.Len()),
			zap.Time("idle_since", expiredBefore),
		)
	}
	return removed
}
