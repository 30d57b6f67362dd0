package resilientconn

import (
	"context"
	"errors"
	"log/slog"
)

// Conn is the minimal surface a resilient stream needs from whatever
// transport it wraps — a TCP connection, a WebSocket, anything with a
// lifecycle and a reason to eventually die.
type Conn interface {
	Close() error
}

// Run drives connect→serve→backoff→reconnect until ctx is cancelled.
// connect establishes one connection; serve blocks for the lifetime of
// that connection and returns when it's done (error or clean EOF). Run
// resets the backoff on every successful connect, and logs every failed
// connect and every lost connection at warn level.
func Run(ctx context.Context, log *slog.Logger, connect func(context.Context) (Conn, error), serve func(context.Context, Conn) error) {
	backoff := NewBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := connect(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Warn("connect failed, backing off", "error", err)
			if sleepErr := backoff.Sleep(ctx); sleepErr != nil {
				return
			}
			continue
		}

		backoff.Reset()
		serveErr := serve(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		if serveErr != nil {
			log.Warn("connection lost, reconnecting", "error", serveErr)
		}
		if sleepErr := backoff.Sleep(ctx); sleepErr != nil {
			return
		}
	}
}
