// Command logger runs the optional raw-frame audit log: it subscribes to
// NATS's adsb.raw subject and appends every frame, as received by the
// ingestor, to a daily-rotating gzip-compressed log file via
// internal/storage. This is a side-channel audit trail independent of
// the relational store that cmd/tracker maintains.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adsbgo/pipeline/internal/model"
	"github.com/adsbgo/pipeline/internal/nats"
	"github.com/adsbgo/pipeline/internal/storage"
)

func main() {
	if err := runLogger(); err != nil {
		log.Printf("logger failed: %v", err)
		os.Exit(1)
	}
}

// runLogger contains the main application logic and can be tested.
func runLogger() error {
	outputDir, natsURL := parseEnvironment()

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	client, err := nats.New(natsURL)
	if err != nil {
		return fmt.Errorf("failed to create NATS client: %w", err)
	}

	store := storage.New(outputDir)
	if err := store.Start(); err != nil {
		client.Close()
		return fmt.Errorf("failed to start storage: %w", err)
	}

	if err := client.SubscribeRaw(func(frame model.Frame) {
		if err := store.WriteMessage([]byte(frame.Hex)); err != nil {
			log.Printf("failed to write frame: %v", err)
		}
	}); err != nil {
		client.Close()
		_ = store.Stop()
		return fmt.Errorf("failed to subscribe to raw frames: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down...")
	client.Close()
	if err := store.Stop(); err != nil {
		log.Printf("failed to stop storage: %v", err)
	}
	time.Sleep(time.Second)

	return nil
}

// parseEnvironment extracts environment variables with defaults.
func parseEnvironment() (string, string) {
	outputDir := os.Getenv("OUTPUT_DIR")
	if outputDir == "" {
		outputDir = "./logs"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://nats:4222"
	}

	return outputDir, natsURL
}
