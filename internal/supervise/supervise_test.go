package supervise

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunStopsOnCleanExit(t *testing.T) {
	calls := 0
	err := Run(context.Background(), discardLogger(), "t", func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error on clean exit, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one call, got %d", calls)
	}
}

func TestRunEscalatesAfterMaxFaults(t *testing.T) {
	calls := 0
	want := errors.New("boom")

	// Run sleeps with the default Backoff (500ms, then 1s, plus jitter), so
	// the three faults take about 1.5s; only the escalation count is
	// asserted, not timing.
	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), discardLogger(), "flaky", func(ctx context.Context) error {
			calls++
			return want
		})
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected escalation error")
		}
		if calls != maxFaults {
			t.Errorf("expected %d calls before escalation, got %d", maxFaults, calls)
		}
	case <-time.After(25 * time.Second):
		t.Fatalf("supervisor did not escalate within timeout")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, discardLogger(), "t", func(ctx context.Context) error {
		return errors.New("should not matter, ctx already done")
	})
	if err != nil {
		t.Fatalf("expected nil error when ctx is already cancelled, got %v", err)
	}
}

func TestPruneOldDropsStaleFaults(t *testing.T) {
	now := time.Now()
	times := []time.Time{
		now.Add(-90 * time.Second),
		now.Add(-10 * time.Second),
	}
	pruned := pruneOld(times, now)
	if len(pruned) != 1 {
		t.Fatalf("expected one surviving fault time, got %d", len(pruned))
	}
}
