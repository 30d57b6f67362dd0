// Command publisher runs components C and D in one process: it consumes
// decoded Mode-S messages from NATS, feeds the aircraft assembler, and
// serves the WebSocket fan-out that broadcasts one snapshot per publish
// tick. Grounded on the teacher's cmd/tracker/main.go signal-handling
// shape (connect dependencies, spawn supervised tasks, wait for signal,
// flush metrics on exit); assembler and publish server are new per
// spec.md §4.3/§4.4.
//
// Components C and D share a process, not because the spec requires it,
// but because §5's per-task ownership rule ("the assembler exposes a
// snapshot request that returns a value copy; it does not lend
// references") is cheapest to honor with a direct in-process call —
// splitting D into its own process would mean either C serializing its
// table across a wire on every tick or D re-deriving positions itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adsbgo/pipeline/internal/assembler"
	"github.com/adsbgo/pipeline/internal/config"
	"github.com/adsbgo/pipeline/internal/logging"
	"github.com/adsbgo/pipeline/internal/metrics"
	"github.com/adsbgo/pipeline/internal/nats"
	"github.com/adsbgo/pipeline/internal/publish"
	"github.com/adsbgo/pipeline/internal/supervise"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}

	log, closeLog, err := logging.New(cfg.LogDir, "PUBLISHER", cfg.LogLevels, cfg.DefaultLevel)
	if err != nil {
		os.Exit(1)
	}
	defer closeLog()

	collector := metrics.New("publisher", cfg.MessageAssemblyTimeout)

	natsClient, err := nats.New(cfg.NATSURL)
	if err != nil {
		log.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	asm := assembler.New(assembler.Config{
		AssemblyTimeout: cfg.MessageAssemblyTimeout,
		Expiry:          cfg.ExpirySeconds,
		ReceiverLat:     cfg.ReceiverLat,
		ReceiverLon:     cfg.ReceiverLon,
		HasReceiverPos:  cfg.HasReceiverPosition,
	}, log, collector)

	server := publish.New(fmt.Sprintf(":%d", cfg.WSPort), asm, cfg.PublishInterval, log)

	go collector.StartResourceSampling(ctx)
	if err := collector.StartCSVExport(ctx, cfg.MetricsDir, 30*time.Second); err != nil {
		log.Warn("failed to start metrics CSV export", "error", err)
	}

	go func() {
		if err := supervise.Run(ctx, log, "assembler", asm.Run); err != nil {
			log.Error("assembler task escalated, exiting", "error", err)
			cancel()
		}
	}()

	go drainSessionEvents(ctx, asm.SessionEvents())

	if err := natsClient.SubscribeDecoded(asm.Update); err != nil {
		log.Error("failed to subscribe to decoded messages", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := supervise.Run(ctx, log, "publish-server", server.Run); err != nil {
			log.Error("publish server task escalated, exiting", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("shutdown signal received")
	case <-ctx.Done():
		log.Info("shutting down after task escalation")
	}

	cancel()
	if path, err := collector.WriteShutdownSnapshot(cfg.MetricsDir); err != nil {
		log.Warn("failed to write shutdown metrics snapshot", "error", err)
	} else {
		log.Info("wrote shutdown metrics snapshot", "path", path)
	}
}

// drainSessionEvents discards the assembler's expiry-scan session-close
// events in this process. cmd/tracker derives the same close signal
// independently from its own per-ICAO idle scan (see its
// forwardAndScanIdle) rather than depending on a cross-process transport
// for this channel, so nothing here needs to consume it beyond keeping
// it from filling up.
func drainSessionEvents(ctx context.Context, events <-chan assembler.SessionCloseEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
		}
	}
}
