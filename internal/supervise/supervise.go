// Package supervise implements the per-task supervisor described in
// spec.md §7: every task runs under a supervisor that restarts it on
// unexpected fault with exponential backoff, escalating to process exit
// after three faults within 60 seconds. The teacher repo had this pattern
// duplicated ad hoc inside cmd/ingestor's retry-with-sleep loop and inside
// capture.go's reconnect loop; this package centralizes it.
package supervise

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adsbgo/pipeline/internal/resilientconn"
)

// faultWindow is the sliding window within which repeated faults escalate.
const faultWindow = 60 * time.Second

// maxFaults is the number of faults tolerated within faultWindow before
// Run gives up and returns an error to its caller (who should exit the
// process non-zero, per spec.md §7's fatal-init path).
const maxFaults = 3

// Run executes task repeatedly until ctx is cancelled or it has faulted
// maxFaults times within faultWindow, in which case Run returns a non-nil
// error for the caller to treat as a fatal startup/runtime failure.
// task returning nil is treated as a clean, intentional exit — Run does
// not restart in that case.
func Run(ctx context.Context, log *slog.Logger, name string, task func(context.Context) error) error {
	backoff := resilientconn.NewBackoff()
	var faultTimes []time.Time

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := task(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		now := time.Now()
		faultTimes = append(faultTimes, now)
		faultTimes = pruneOld(faultTimes, now)

		log.Error("task faulted, restarting", "task", name, "error", err, "faults_in_window", len(faultTimes))

		if len(faultTimes) >= maxFaults {
			return fmt.Errorf("task %q faulted %d times within %s, escalating: %w", name, len(faultTimes), faultWindow, err)
		}

		if sleepErr := backoff.Sleep(ctx); sleepErr != nil {
			return nil
		}
	}
}

func pruneOld(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-faultWindow)
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
