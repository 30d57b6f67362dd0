// Package assembler implements component C: the aircraft table. It owns
// the per-ICAO track state exclusively — the table is mutated only from
// inside Assembler.Run's select loop, and every other task talks to it
// through Update/Snapshot/SessionEvents, never by sharing the map. This
// mirrors the teacher's StateTracker pattern in internal/nats (one owner
// task, message-passing accessors) generalized from flight-session
// bookkeeping to live CPR-pair merging.
package assembler

import (
	"context"
	"log/slog"
	"time"

	"github.com/adsbgo/pipeline/internal/decode"
	"github.com/adsbgo/pipeline/internal/model"
)

// Recorder is the subset of internal/metrics.Recorder this package needs.
type Recorder interface {
	RecordAssemblyLatency(d time.Duration)
	IncrementIncompleteAssembly()
	IncrementCounter(name string)
}

// maxCPRPairAge bounds how far apart an even/odd CPR pair's receive times
// may be and still be treated as describing one instant, per spec.md §4.3.
const maxCPRPairAge = 10 * time.Second

// SessionCloseEvent is emitted by the expiry scan when an aircraft has not
// been heard from in longer than the configured expiry window. Component F
// applies it directly against its open_sessions map.
type SessionCloseEvent struct {
	ICAO     uint32
	LastSeen time.Time
}

// Config holds the assembler's tunables, sourced from internal/config.
type Config struct {
	AssemblyTimeout  time.Duration
	Expiry           time.Duration
	ExpiryScanPeriod time.Duration
	ReceiverLat      float64
	ReceiverLon      float64
	HasReceiverPos   bool
}

// Assembler owns the aircraft table and exposes it only through channels.
type Assembler struct {
	cfg Config
	log *slog.Logger
	rec Recorder

	updates       chan model.DecodedMessage
	snapshotReq   chan chan []model.AircraftState
	sessionEvents chan SessionCloseEvent

	// reportedIncomplete tracks ICAOs already counted as incomplete so the
	// counter only fires once per aircraft, per spec.md §4.3.
	reportedIncomplete map[uint32]bool
}

// New creates an Assembler. Call Run to start its owning task.
func New(cfg Config, log *slog.Logger, rec Recorder) *Assembler {
	if cfg.ExpiryScanPeriod == 0 {
		cfg.ExpiryScanPeriod = 5 * time.Second
	}
	return &Assembler{
		cfg:                cfg,
		log:                log,
		rec:                rec,
		updates:            make(chan model.DecodedMessage, 4096),
		snapshotReq:        make(chan chan []model.AircraftState),
		sessionEvents:      make(chan SessionCloseEvent, 256),
		reportedIncomplete: make(map[uint32]bool),
	}
}

// Update queues a decoded message for merge into the table. Non-blocking:
// if the assembler's task is backed up, the update is dropped and counted
// rather than blocking the decoder.
func (a *Assembler) Update(msg model.DecodedMessage) {
	select {
	case a.updates <- msg:
	default:
		a.rec.IncrementCounter("assembler_updates_dropped")
	}
}

// Snapshot returns a copy of every aircraft with a decoded position and a
// last-seen time inside the expiry window — exactly the rows component D
// needs for one publish tick.
func (a *Assembler) Snapshot() []model.AircraftState {
	respCh := make(chan []model.AircraftState, 1)
	select {
	case a.snapshotReq <- respCh:
	case <-time.After(time.Second):
		return nil
	}
	select {
	case rows := <-respCh:
		return rows
	case <-time.After(time.Second):
		return nil
	}
}

// SessionEvents returns the channel of session-close events produced by
// the expiry scan. cmd/publisher drains and discards them; component F
// (cmd/tracker) derives its session closes from its own idle scan.
func (a *Assembler) SessionEvents() <-chan SessionCloseEvent {
	return a.sessionEvents
}

// Run is the assembler's owning task. It blocks until ctx is cancelled.
func (a *Assembler) Run(ctx context.Context) error {
	table := make(map[uint32]*model.AircraftState)

	ticker := time.NewTicker(a.cfg.ExpiryScanPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg := <-a.updates:
			a.applyUpdate(table, msg)

		case respCh := <-a.snapshotReq:
			respCh <- a.eligibleSnapshot(table)

		case <-ticker.C:
			a.expireStale(table)
		}
	}
}

func (a *Assembler) applyUpdate(table map[uint32]*model.AircraftState, msg model.DecodedMessage) {
	st, ok := table[msg.ICAO]
	if !ok {
		st = &model.AircraftState{ICAO: msg.ICAO, FirstSeen: msg.RxTime}
		table[msg.ICAO] = st
	}
	st.LastSeen = msg.RxTime

	switch msg.Kind {
	case model.KindIdentification:
		st.Callsign = msg.Callsign

	case model.KindAirbornePosition:
		a.mergePosition(st, msg, false)
		st.AltFt = msg.AltitudeFt
		st.HasAltitude = true

	case model.KindSurfacePosition:
		a.mergePosition(st, msg, true)
		st.AltFt = 0
		st.HasAltitude = true
		if msg.HasVelocity {
			a.mergeVelocity(st, msg)
		}

	case model.KindVelocity:
		a.mergeVelocity(st, msg)

	case model.KindOther:
		// last_seen already updated above; nothing else to merge.
	}

	a.checkAssemblyCompletion(st)
}

// mergeVelocity applies a message's velocity fields to the aircraft state.
// Shared by KindVelocity (TC19, airborne) and KindSurfacePosition messages
// that also decoded movement/heading (TC 5-8), so a surface-only aircraft
// that never emits TC19 still reaches HasVelocity and can complete.
func (a *Assembler) mergeVelocity(st *model.AircraftState, msg model.DecodedMessage) {
	st.GroundSpeed = msg.GroundSpeed
	st.TrackDeg = msg.TrackDeg
	st.VerticalRateFpm = msg.VerticalRateFpm
	st.VelocityKind = msg.VelocityKind
	st.HasVelocity = true
}

// mergePosition buffers the CPR half by parity and attempts to resolve a
// lat/lon, trying the globally-unambiguous pair decode first and falling
// back to locally-unambiguous decoding against a configured receiver
// position, per spec.md §4.3.
func (a *Assembler) mergePosition(st *model.AircraftState, msg model.DecodedMessage, surface bool) {
	sample := model.CPRSample{EncLat: msg.EncLat, EncLon: msg.EncLon, RxTime: msg.RxTime, Valid: true}

	lastIsOdd := msg.CPRFormat == model.CPROdd
	if lastIsOdd {
		st.OddCPR = sample
	} else {
		st.EvenCPR = sample
	}

	if st.EvenCPR.Valid && st.OddCPR.Valid {
		gap := st.EvenCPR.RxTime.Sub(st.OddCPR.RxTime)
		if gap < 0 {
			gap = -gap
		}
		if gap <= maxCPRPairAge {
			var lat, lon float64
			var ok bool
			if surface {
				lat, lon, ok = decode.GlobalSurfacePosition(st.EvenCPR.EncLat, st.EvenCPR.EncLon, st.OddCPR.EncLat, st.OddCPR.EncLon, lastIsOdd)
			} else {
				lat, lon, ok = decode.GlobalPosition(st.EvenCPR.EncLat, st.EvenCPR.EncLon, st.OddCPR.EncLat, st.OddCPR.EncLon, lastIsOdd)
			}
			if ok {
				st.Lat, st.Lon = lat, lon
				st.HasPosition = true
				return
			}
			a.rec.IncrementCounter("cpr_global_decode_failed")
		}
	}

	if a.cfg.HasReceiverPos {
		lat, lon, ok := decode.LocalPosition(a.cfg.ReceiverLat, a.cfg.ReceiverLon, sample.EncLat, sample.EncLon, lastIsOdd, surface)
		if ok {
			st.Lat, st.Lon = lat, lon
			st.HasPosition = true
			return
		}
		a.rec.IncrementCounter("cpr_local_decode_failed")
	}

	// Neither path resolved: defer, keeping whatever position (if any) the
	// aircraft already had.
}

func (a *Assembler) checkAssemblyCompletion(st *model.AircraftState) {
	if st.AssemblyCompleteAt.IsZero() && st.Complete() {
		st.AssemblyCompleteAt = st.LastSeen
		a.rec.RecordAssemblyLatency(st.AssemblyCompleteAt.Sub(st.FirstSeen))
		return
	}

	if st.AssemblyCompleteAt.IsZero() && !a.reportedIncomplete[st.ICAO] {
		if st.LastSeen.Sub(st.FirstSeen) > a.cfg.AssemblyTimeout {
			a.reportedIncomplete[st.ICAO] = true
			a.rec.IncrementIncompleteAssembly()
		}
	}
}

func (a *Assembler) eligibleSnapshot(table map[uint32]*model.AircraftState) []model.AircraftState {
	now := time.Now()
	out := make([]model.AircraftState, 0, len(table))
	for _, st := range table {
		if !st.HasPosition {
			continue
		}
		if now.Sub(st.LastSeen) > a.cfg.Expiry {
			continue
		}
		out = append(out, *st)
	}
	return out
}

func (a *Assembler) expireStale(table map[uint32]*model.AircraftState) {
	now := time.Now()
	for icao, st := range table {
		if now.Sub(st.LastSeen) <= a.cfg.Expiry {
			continue
		}
		event := SessionCloseEvent{ICAO: icao, LastSeen: st.LastSeen}
		select {
		case a.sessionEvents <- event:
		default:
			a.log.Warn("session-close event dropped, channel full", "icao", model.ICAOHex(icao))
		}
		delete(table, icao)
		delete(a.reportedIncomplete, icao)
	}
}
