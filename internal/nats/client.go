// Package nats carries decoded Mode-S messages from the ingestor
// (components A+B) to the publisher process (components C+D), and
// optionally raw frames to the audit logger. Grounded on the teacher's
// internal/nats/client.go: same JetStream connect/stream-create/publish/
// subscribe shape, retargeted from a single sbs.raw subject carrying
// types.SBSMessage to two subjects carrying model.Frame and
// model.DecodedMessage.
package nats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/adsbgo/pipeline/internal/model"
)

const (
	// SubjectDecoded carries model.DecodedMessage from the ingestor to
	// the publisher's assembler task.
	SubjectDecoded = "adsb.decoded"

	// SubjectRaw carries model.Frame for the optional pre-decode audit
	// log (cmd/logger).
	SubjectRaw = "adsb.raw"
)

// Client wraps a JetStream connection and the streams this pipeline uses.
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New connects to NATS and ensures both pipeline streams exist.
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	if err := ensureStream(js, "ADSB_DECODED", SubjectDecoded, time.Hour); err != nil {
		nc.Close()
		return nil, err
	}
	if err := ensureStream(js, "ADSB_RAW", SubjectRaw, 24*time.Hour); err != nil {
		nc.Close()
		return nil, err
	}

	return &Client{conn: nc, js: js}, nil
}

func ensureStream(js nats.JetStreamContext, name, subject string, maxAge time.Duration) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
		MaxAge:   maxAge,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		return fmt.Errorf("failed to create stream %s: %w", name, err)
	}
	return nil
}

// NewWithConn wraps an already-connected *nats.Conn, used for testing
// against an in-process NATS server.
func NewWithConn(nc *nats.Conn) (*Client, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}
	if err := ensureStream(js, "ADSB_DECODED", SubjectDecoded, time.Hour); err != nil {
		return nil, err
	}
	if err := ensureStream(js, "ADSB_RAW", SubjectRaw, 24*time.Hour); err != nil {
		return nil, err
	}
	return &Client{conn: nc, js: js}, nil
}

// PublishDecoded publishes a decoded Mode-S message for the assembler.
func (c *Client) PublishDecoded(msg model.DecodedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal decoded message: %w", err)
	}
	if _, err := c.js.Publish(SubjectDecoded, data); err != nil {
		return fmt.Errorf("failed to publish decoded message: %w", err)
	}
	return nil
}

// SubscribeDecoded delivers each decoded message on SubjectDecoded to
// handler as it arrives.
func (c *Client) SubscribeDecoded(handler func(model.DecodedMessage)) error {
	_, err := c.js.Subscribe(SubjectDecoded, func(m *nats.Msg) {
		var msg model.DecodedMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			return
		}
		handler(msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", SubjectDecoded, err)
	}
	return nil
}

// PublishRaw publishes a raw frame for the audit logger.
func (c *Client) PublishRaw(frame model.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	if _, err := c.js.Publish(SubjectRaw, data); err != nil {
		return fmt.Errorf("failed to publish frame: %w", err)
	}
	return nil
}

// SubscribeRaw delivers each frame on SubjectRaw to handler as it arrives.
func (c *Client) SubscribeRaw(handler func(model.Frame)) error {
	_, err := c.js.Subscribe(SubjectRaw, func(m *nats.Msg) {
		var frame model.Frame
		if err := json.Unmarshal(m.Data, &frame); err != nil {
			return
		}
		handler(frame)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", SubjectRaw, err)
	}
	return nil
}

// Close closes the underlying NATS connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
