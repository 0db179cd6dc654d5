package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) DeleteExpired(context.Context, time.Time) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestSweepSessionsRunsUntilCanceled(t *testing.T) {
	for _, purgeErr := range []error{nil, errors.New("database offline")} {
		purger := &countingPurger{err: purgeErr}
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan struct{})
		go func() {
			sweepSessions(ctx, purger, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
			close(done)
		}()

		deadline := time.After(2 * time.Second)
		for purger.calls.Load() < 2 {
			select {
			case <-deadline:
				t.Fatalf("expected repeated sweeps, got %d", purger.calls.Load())
			case <-time.After(time.Millisecond):
			}
		}

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("sweeper did not stop after cancel")
		}
	}
}
