// Package subscribe implements component E: the durable subscriber. It
// holds a WebSocket connection to the publisher (component D) open
// indefinitely, turning each PublishedFrame into PathSample candidates
// for component F. Grounded on the same Traxin77-Iot-gateway client
// pattern as internal/publish, but as a dialer instead of a listener, and
// on the teacher's capture.go reconnect shape generalized through
// internal/resilientconn — the same backoff policy component A uses.
package subscribe

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adsbgo/pipeline/internal/model"
	"github.com/adsbgo/pipeline/internal/resilientconn"
)

// Recorder is the subset of internal/metrics.Recorder this package needs.
type Recorder interface {
	IncrementCounter(name string)
}

// wsConn adapts *websocket.Conn to resilientconn.Conn.
type wsConn struct{ *websocket.Conn }

// Subscriber maintains the connection to the publisher and forwards
// PathSample candidates to the DB worker over a bounded channel. Per
// spec.md §4.5 the channel is the backpressure point: persistence lag
// must never stall the live read side.
type Subscriber struct {
	uri     string
	log     *slog.Logger
	rec     Recorder
	samples chan model.PathSample
	dial    func(ctx context.Context, uri string) (*websocket.Conn, error)
}

// New creates a Subscriber that will dial uri (e.g. "ws://localhost:8443")
// on Run, with a candidate channel of the given capacity (default 1024
// per spec.md §4.5).
func New(uri string, capacity int, log *slog.Logger, rec Recorder) *Subscriber {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Subscriber{
		uri:     uri,
		log:     log,
		rec:     rec,
		samples: make(chan model.PathSample, capacity),
		dial: func(ctx context.Context, uri string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, uri, nil)
			return conn, err
		},
	}
}

// Samples returns the channel of PathSample candidates, closed once Run
// returns.
func (s *Subscriber) Samples() <-chan model.PathSample {
	return s.samples
}

// Run drives the reconnect loop until ctx is cancelled, then closes the
// samples channel.
func (s *Subscriber) Run(ctx context.Context) error {
	defer close(s.samples)

	resilientconn.Run(ctx, s.log,
		func(ctx context.Context) (resilientconn.Conn, error) {
			conn, err := s.dial(ctx, s.uri)
			if err != nil {
				return nil, err
			}
			s.log.Info("subscriber connected", "uri", s.uri)
			return wsConn{conn}, nil
		},
		func(ctx context.Context, conn resilientconn.Conn) error {
			return s.readLoop(ctx, conn.(wsConn).Conn)
		},
	)
	return nil
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame model.PublishedFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.rec.IncrementCounter("subscriber_frames_unparseable")
			continue
		}

		now := time.Now().UTC()
		for _, a := range frame.Aircraft {
			sample := model.PathSample{
				ICAO:            a.ICAO,
				Callsign:        a.Callsign,
				Ts:              now,
				Lat:             a.Lat,
				Lon:             a.Lon,
				AltFt:           a.AltFt,
				Velocity:        a.GroundSpeed,
				TrackDeg:        a.TrackDeg,
				VerticalRateFpm: a.VerticalRateFpm,
			}
			select {
			case s.samples <- sample:
			default:
				s.rec.IncrementCounter("samples_dropped_backpressure")
			}
		}
	}
}
