package publish

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adsbgo/pipeline/internal/model"
)

// SnapshotSource is the read side of component C's message interface that
// the publisher needs: a cheap, in-process shallow copy of eligible rows.
// Implemented by *internal/assembler.Assembler; kept as an interface here
// so this package never imports the assembler's mutable internals.
type SnapshotSource interface {
	Snapshot() []model.AircraftState
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server bundles the WebSocket hub with the HTTP listener that accepts
// new subscribers, and the tick loop that drives broadcasts.
type Server struct {
	hub      *Hub
	source   SnapshotSource
	log      *slog.Logger
	interval time.Duration
	httpSrv  *http.Server
}

// New creates a publisher Server listening on addr (host:port form, e.g.
// ":8443") and broadcasting a snapshot from source every interval.
func New(addr string, source SnapshotSource, interval time.Duration, log *slog.Logger) *Server {
	hub := NewHub(log)
	mux := http.NewServeMux()
	s := &Server{
		hub:      hub,
		source:   source,
		log:      log,
		interval: interval,
		httpSrv:  &http.Server{Addr: addr, Handler: mux},
	}
	mux.HandleFunc("/", s.handleUpgrade)
	return s
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	s.hub.Register(conn)
}

// Run starts the hub's owning task, the HTTP listener, and the publish
// tick loop. It blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("publisher listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("websocket listener failed: %w", err)
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.httpSrv.Shutdown(shutdownCtx)
			return nil

		case err := <-errCh:
			return err

		case <-ticker.C:
			s.tick()
		}
	}
}

// tick performs exactly one publish: one snapshot read, one serialize,
// one broadcast. Missed ticks (scheduling slack) are never made up, per
// spec.md §4.4.
func (s *Server) tick() {
	rows := s.source.Snapshot()
	frame := model.PublishedFrame{
		Ts:       time.Now().UTC(),
		Aircraft: make([]model.PublishedAircraft, 0, len(rows)),
	}
	for _, st := range rows {
		frame.Aircraft = append(frame.Aircraft, model.PublishedAircraft{
			ICAO:            st.ICAO,
			Callsign:        st.Callsign,
			Lat:             st.Lat,
			Lon:             st.Lon,
			AltFt:           st.AltFt,
			GroundSpeed:     st.GroundSpeed,
			TrackDeg:        st.TrackDeg,
			VerticalRateFpm: st.VerticalRateFpm,
			LastSeen:        st.LastSeen,
		})
	}
	s.hub.Broadcast(frame)
}
