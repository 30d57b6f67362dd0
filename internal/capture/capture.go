// Package capture implements component A of the pipeline: the frame
// source client. It maintains a TCP session against an upstream
// dump1090-style raw feed and yields a lazy, restartable sequence of hex
// Mode-S frames. Grounded on the teacher's internal/capture/capture.go
// (connectToSource/handleConnection reconnect loop, TCP keepalive
// tuning), generalized to speak dump1090's asterisk-delimited text
// framing and to use the shared resilientconn backoff/reconnect loop
// instead of its own ad hoc delay.
package capture

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/adsbgo/pipeline/internal/model"
	"github.com/adsbgo/pipeline/internal/resilientconn"
)

// Recorder is the subset of internal/metrics.Recorder this package needs.
type Recorder interface {
	IncrementCounter(name string)
}

// Source maintains a TCP session to a dump1090-style raw feed and
// publishes decoded-ready hex frames on a bounded channel. Per spec.md
// §4.1 it never buffers unbounded: if the channel is full the frame is
// dropped rather than queued.
type Source struct {
	addr      string
	log       *slog.Logger
	rec       Recorder
	frameChan chan model.Frame
	dial      func(ctx context.Context, addr string) (net.Conn, error)
}

// New creates a Source that will dial host:port on Run.
func New(host string, port int, log *slog.Logger, rec Recorder) *Source {
	return &Source{
		addr:      net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		log:       log,
		rec:       rec,
		frameChan: make(chan model.Frame, 1024),
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "tcp", addr)
		},
	}
}

// Frames returns the channel of decoded-ready frames. Closed once Run
// returns.
func (s *Source) Frames() <-chan model.Frame {
	return s.frameChan
}

// Run drives the reconnect loop until ctx is cancelled, then closes the
// frame channel. It never returns an error itself — transient I/O
// failures are handled by the reconnect/backoff loop per spec.md §7;
// only ctx cancellation ends Run.
func (s *Source) Run(ctx context.Context) error {
	defer close(s.frameChan)

	resilientconn.Run(ctx, s.log,
		func(ctx context.Context) (resilientconn.Conn, error) {
			conn, err := s.dial(ctx, s.addr)
			if err != nil {
				return nil, err
			}
			configureTCPKeepalive(conn, s.log, s.addr)
			s.log.Info("connected to frame source", "addr", s.addr)
			return conn, nil
		},
		func(ctx context.Context, conn resilientconn.Conn) error {
			return s.readLoop(ctx, conn.(net.Conn))
		},
	)
	return nil
}

// readLoop reads asterisk-delimited hex frames ("*8D4840...;\n") off conn
// until a read error or ctx cancellation. dump1090's raw port (30002)
// also accepts binary Beast framing; this implementation standardizes on
// the text variant, which is the format dump1090 emits by default on
// that port.
func (s *Source) readLoop(ctx context.Context, conn net.Conn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		hex, ok := parseRawLine(line)
		if !ok {
			s.rec.IncrementCounter("frames_unparseable")
			continue
		}

		frame := model.Frame{Hex: hex, RxTime: time.Now().UTC()}
		select {
		case s.frameChan <- frame:
		default:
			s.rec.IncrementCounter("frames_dropped_backpressure")
		}
	}
	return scanner.Err()
}

// parseRawLine strips dump1090's "*...;" envelope and returns the bare
// hex payload.
func parseRawLine(line string) (string, bool) {
	if !strings.HasPrefix(line, "*") {
		return "", false
	}
	line = strings.TrimPrefix(line, "*")
	line = strings.TrimSuffix(line, ";")
	if line == "" {
		return "", false
	}
	return line, true
}

func configureTCPKeepalive(conn net.Conn, log *slog.Logger, addr string) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tcpConn.SetKeepAlive(true); err != nil {
		log.Warn("failed to set keepalive", "addr", addr, "error", err)
	}
	if err := tcpConn.SetKeepAlivePeriod(2 * time.Second); err != nil {
		log.Warn("failed to set keepalive period", "addr", addr, "error", err)
	}
	if err := tcpConn.SetNoDelay(true); err != nil {
		log.Warn("failed to set no delay", "addr", addr, "error", err)
	}
}
