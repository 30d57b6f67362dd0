// Command tracker runs components E and F: it holds a durable WebSocket
// subscription to the publisher process open indefinitely and persists
// every significant path sample to TimescaleDB, batching writes into a
// single-writer worker. Grounded on the teacher's cmd/tracker/main.go
// signal-handling and client-lifecycle shape, retargeted from a local SBS
// parser + Redis flight cache to a WebSocket subscriber feeding the
// batched DB worker in internal/store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adsbgo/pipeline/internal/assembler"
	"github.com/adsbgo/pipeline/internal/config"
	"github.com/adsbgo/pipeline/internal/db"
	"github.com/adsbgo/pipeline/internal/logging"
	"github.com/adsbgo/pipeline/internal/metrics"
	"github.com/adsbgo/pipeline/internal/model"
	"github.com/adsbgo/pipeline/internal/redis"
	"github.com/adsbgo/pipeline/internal/store"
	"github.com/adsbgo/pipeline/internal/subscribe"
	"github.com/adsbgo/pipeline/internal/supervise"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}

	log, closeLog, err := logging.New(cfg.LogDir, "TRACKER", cfg.LogLevels, cfg.DefaultLevel)
	if err != nil {
		os.Exit(1)
	}
	defer closeLog()

	collector := metrics.New("tracker", cfg.MessageAssemblyTimeout)

	dbClient, err := db.New(cfg.DBConnStr)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	var cache store.Cache
	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		log.Warn("failed to connect to redis, starting cold on every restart", "error", err)
	} else {
		cache = redisClient
		defer redisClient.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go collector.StartResourceSampling(ctx)
	if err := collector.StartCSVExport(ctx, cfg.MetricsDir, 30*time.Second); err != nil {
		log.Warn("failed to start metrics CSV export", "error", err)
	}

	sub := subscribe.New(cfg.WSURI, cfg.PersistQueueCapacity, log, collector)

	st := store.New(dbClient, cache, store.Config{
		SaveInterval: cfg.SaveInterval,
		SessionGap:   cfg.ExpirySeconds,
	}, log, collector)

	samples := make(chan model.PathSample, cfg.PersistQueueCapacity)
	sessionEvents := make(chan assembler.SessionCloseEvent, 256)

	go func() {
		if err := supervise.Run(ctx, log, "subscribe", sub.Run); err != nil {
			log.Error("subscribe task escalated, exiting", "error", err)
			cancel()
		}
	}()

	go func() {
		if err := supervise.Run(ctx, log, "store", func(ctx context.Context) error {
			return st.Run(ctx, samples, sessionEvents)
		}); err != nil {
			log.Error("store task escalated, exiting", "error", err)
			cancel()
		}
	}()

	go forwardAndScanIdle(ctx, sub.Samples(), samples, sessionEvents, cfg.ExpirySeconds)

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

// forwardAndScanIdle is the bridge between component E's subscriber and
// component F's DB worker. It owns a single map of per-aircraft
// last-seen times exclusively (no other goroutine touches it): every
// incoming sample updates the entry before being forwarded unchanged,
// and a periodic scan emits a SessionCloseEvent for any aircraft idle
// longer than expiry, mirroring the assembler's own eviction scan
// (component C, running in the publisher process) without requiring a
// cross-process transport for it — the DB worker only needs to know that
// a gap occurred, not why.
func forwardAndScanIdle(ctx context.Context, in <-chan model.PathSample, out chan<- model.PathSample, events chan<- assembler.SessionCloseEvent, expiry time.Duration) {
	if expiry <= 0 {
		expiry = 120 * time.Second
	}
	lastSeen := make(map[uint32]time.Time)

	ticker := time.NewTicker(expiry / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-in:
			if !ok {
				return
			}
			lastSeen[sample.ICAO] = sample.Ts
			select {
			case out <- sample:
			case <-ctx.Done():
				return
			}
		case <-ticker.C:
			now := time.Now().UTC()
			for icao, seen := range lastSeen {
				if now.Sub(seen) < expiry {
					continue
				}
				delete(lastSeen, icao)
				select {
				case events <- assembler.SessionCloseEvent{ICAO: icao, LastSeen: seen}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
