package nats

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	natscontainer "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/adsbgo/pipeline/internal/model"
)

func setupNATSContainer(t *testing.T) (*natscontainer.NATSContainer, string) {
	ctx := context.Background()

	c, err := natscontainer.Run(ctx, "nats:2.9-alpine",
		testcontainers.WithWaitStrategy(wait.ForLog("Server is ready")),
	)
	if err != nil {
		t.Fatalf("failed to start NATS container: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate NATS container: %v", err)
		}
	})

	url, err := c.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get NATS connection string: %v", err)
	}
	return c, url
}

func TestIntegration_ConnectionEstablished(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, url := setupNATSContainer(t)
	client, err := New(url)
	if err != nil {
		t.Fatalf("failed to create NATS client: %v", err)
	}
	defer client.Close()

	if client.conn == nil || client.js == nil {
		t.Fatal("expected connection and JetStream context to be initialized")
	}
}

func TestIntegration_PublishAndSubscribeDecoded(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, url := setupNATSContainer(t)
	client, err := New(url)
	if err != nil {
		t.Fatalf("failed to create NATS client: %v", err)
	}
	defer client.Close()

	received := make(chan model.DecodedMessage, 1)
	if err := client.SubscribeDecoded(func(msg model.DecodedMessage) { received <- msg }); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	want := model.DecodedMessage{Kind: model.KindAirbornePosition, ICAO: 0xABC123, EncLat: 93000, EncLon: 51372, AltitudeFt: 35000, RxTime: time.Now().UTC()}
	if err := client.PublishDecoded(want); err != nil {
		t.Fatalf("failed to publish decoded message: %v", err)
	}

	select {
	case got := <-received:
		if got.ICAO != want.ICAO || got.EncLat != want.EncLat {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for decoded message")
	}
}

func TestIntegration_PublishAndSubscribeRaw(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, url := setupNATSContainer(t)
	client, err := New(url)
	if err != nil {
		t.Fatalf("failed to create NATS client: %v", err)
	}
	defer client.Close()

	received := make(chan model.Frame, 1)
	if err := client.SubscribeRaw(func(f model.Frame) { received <- f }); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	want := model.Frame{Hex: "8D4840D6202CC371C32CE0576098", RxTime: time.Now().UTC()}
	if err := client.PublishRaw(want); err != nil {
		t.Fatalf("failed to publish frame: %v", err)
	}

	select {
	case got := <-received:
		if got.Hex != want.Hex {
			t.Errorf("expected hex %s, got %s", want.Hex, got.Hex)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for frame")
	}
}
