// Command ingestor runs components A and B: it reads raw Mode-S frames
// from a dump1090 receiver, decodes each one, and publishes the result
// onto NATS for the publisher process to assemble. Grounded on the
// teacher's cmd/ingestor/main.go signal-handling shape, retargeted from a
// multi-source SBS-text reader publishing to a single sbs.raw subject to
// a single dump1090 frame source publishing DecodedMessages.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adsbgo/pipeline/internal/capture"
	"github.com/adsbgo/pipeline/internal/config"
	"github.com/adsbgo/pipeline/internal/decode"
	"github.com/adsbgo/pipeline/internal/logging"
	"github.com/adsbgo/pipeline/internal/metrics"
	"github.com/adsbgo/pipeline/internal/model"
	"github.com/adsbgo/pipeline/internal/nats"
	"github.com/adsbgo/pipeline/internal/supervise"
)

// Publisher is the subset of *nats.Client this process needs, letting
// tests substitute a recording double.
type Publisher interface {
	PublishDecoded(msg model.DecodedMessage) error
	PublishRaw(frame model.Frame) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log, closeLog, err := logging.New(cfg.LogDir, "INGESTOR", cfg.LogLevels, cfg.DefaultLevel)
	if err != nil {
		slog.Error("failed to initialize logging", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	collector := metrics.New("ingestor", cfg.MessageAssemblyTimeout)

	natsClient, err := nats.New(cfg.NATSURL)
	if err != nil {
		log.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := capture.New(cfg.Dump1090Host, cfg.Dump1090RawPort, log, collector)

	go collector.StartResourceSampling(ctx)
	if err := collector.StartCSVExport(ctx, cfg.MetricsDir, 30*time.Second); err != nil {
		log.Warn("failed to start metrics CSV export", "error", err)
	}

	go func() {
		if err := supervise.Run(ctx, log, "capture", source.Run); err != nil {
			log.Error("capture task escalated, exiting", "error", err)
			cancel()
		}
	}()

	go func() {
		if err := supervise.Run(ctx, log, "decode-publish", func(ctx context.Context) error {
			return decodeAndPublish(ctx, source.Frames(), natsClient, log, collector)
		}); err != nil {
			log.Error("decode task escalated, exiting", "error", err)
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

// decodeAndPublish drains frames, decodes each, and publishes the result
// for the publisher process's assembler. It also republishes the raw
// frame for cmd/logger's optional audit log.
func decodeAndPublish(ctx context.Context, frames <-chan model.Frame, pub Publisher, log *slog.Logger, rec metrics.Recorder) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}

			if err := pub.PublishRaw(frame); err != nil {
				log.Warn("failed to publish raw frame", "error", err)
			}

			msg, err := decode.Decode(frame, time.Now().UTC())
			if err != nil {
				rec.IncrementCounter("decode_errors")
				continue
			}

			if err := pub.PublishDecoded(msg); err != nil {
				log.Warn("failed to publish decoded message", "error", err)
				rec.IncrementCounter("publish_errors")
			}
		}
	}
}
