package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/adsbgo/pipeline/internal/assembler"
	"github.com/adsbgo/pipeline/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestForwardAndScanIdleForwardsSamplesUnchanged(t *testing.T) {
	in := make(chan model.PathSample, 1)
	out := make(chan model.PathSample, 1)
	events := make(chan assembler.SessionCloseEvent, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go forwardAndScanIdle(ctx, in, out, events, time.Hour)

	sample := model.PathSample{ICAO: 0xABC123, Ts: time.Now().UTC()}
	in <- sample

	select {
	case got := <-out:
		if got.ICAO != sample.ICAO {
			t.Errorf("expected forwarded ICAO %x, got %x", sample.ICAO, got.ICAO)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample to be forwarded")
	}
}

func TestForwardAndScanIdleEmitsSessionCloseAfterExpiry(t *testing.T) {
	in := make(chan model.PathSample, 1)
	out := make(chan model.PathSample, 1)
	events := make(chan assembler.SessionCloseEvent, 1)

	expiry := 100 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go forwardAndScanIdle(ctx, in, out, events, expiry)

	seen := time.Now().UTC()
	in <- model.PathSample{ICAO: 0x4840D6, Ts: seen}
	<-out

	select {
	case ev := <-events:
		if ev.ICAO != 0x4840D6 {
			t.Errorf("expected session-close for ICAO 0x4840D6, got %x", ev.ICAO)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session-close event after idle expiry")
	}
}

func TestForwardAndScanIdleStopsOnContextCancel(t *testing.T) {
	in := make(chan model.PathSample)
	out := make(chan model.PathSample)
	events := make(chan assembler.SessionCloseEvent)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		forwardAndScanIdle(ctx, in, out, events, time.Second)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwardAndScanIdle did not return after context cancellation")
	}
}

func TestForwardAndScanIdleReturnsOnClosedInputChannel(t *testing.T) {
	in := make(chan model.PathSample)
	out := make(chan model.PathSample)
	events := make(chan assembler.SessionCloseEvent)
	close(in)

	done := make(chan struct{})
	go func() {
		forwardAndScanIdle(context.Background(), in, out, events, time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwardAndScanIdle did not return after input channel closed")
	}
}
