// Package resilientconn centralizes the reconnect-with-backoff loop shared
// by the frame source client (component A) and the durable subscriber
// (component E), rather than duplicating an ad-hoc retry loop in each.
package resilientconn

import (
	"context"
	"math/rand"
	"time"
)

// Backoff implements exponential backoff with a cap, reset on success, as
// used by every reconnecting component in this pipeline: starts at
// 500ms, doubles on each failure, caps at 10s, and resets to the starting
// delay the moment a connection succeeds.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	current time.Duration
}

// NewBackoff returns a Backoff with the pipeline's standard 500ms/10s
// parameters.
func NewBackoff() *Backoff {
	return &Backoff{Initial: 500 * time.Millisecond, Max: 10 * time.Second}
}

// Reset returns the backoff to its initial delay, called after a
// successful connection.
func (b *Backoff) Reset() {
	b.current = 0
}

// Next returns the next delay to wait before retrying, advancing the
// internal state, with a small jitter so many reconnecting clients don't
// thunder in lockstep.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
	} else {
		b.current *= 2
		if b.current > b.Max {
			b.current = b.Max
		}
	}
	jitter := time.Duration(rand.Int63n(int64(b.current)/4 + 1))
	return b.current + jitter
}

// Sleep waits for the next backoff delay or until ctx is cancelled,
// returning ctx.Err() in the latter case — this is what makes reconnect
// backoff interruptible at shutdown, per the spec's cancellation model.
func (b *Backoff) Sleep(ctx context.Context) error {
	select {
	case <-time.After(b.Next()):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
