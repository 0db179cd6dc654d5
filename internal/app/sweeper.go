package app

import (
	"context"
	"log/slog"
	"time"
)

const sessionSweepInterval = 15 * time.Minute

type expiredSessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// sweepSessions removes expired refresh sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, store expiredSessionPurger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("session sweep failed", "error", err)
				}
				continue
			}
			if removed > 0 {
				logger.Info("expired sessions removed", "count", removed)
			}
		}
	}
}
