package core

// sweeper.go removes idle sessions in the background.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often idle sessions are checked.
const DefaultSweepInterval = 5 * time.Minute

// StartSessionSweeper periodically removes sessions idle for longer than
// the session TTL. It blocks until ctx is cancelled.
func (s *Service) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	slog.Info("session sweeper started",
		"interval", interval.String(),
		"ttl", s.opts.SessionTTL.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if n := s.SweepExpired(); n > 0 {
				slog.Info("expired sessions removed", "count", n, "remaining", s.SessionCount())
			}
		}
	}
}

// SweepExpired removes sessions idle for longer than the TTL and returns
// how many were removed. Sessions busy with a filter run are skipped.
func (s *Service) SweepExpired() int {
	cutoff := s.now().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		idle := sess.lastAccess.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
