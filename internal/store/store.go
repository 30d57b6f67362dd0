// Package store implements component F: the single-writer DB worker. It
// is the only task that holds a handle to the relational store; it
// upserts aircraft rows, opens/closes flight sessions, and appends
// throttled path history, batching writes into timer- or size-bounded
// transactions per spec.md §4.6. Grounded on the teacher's
// internal/db/client.go query style and the StateTracker's
// open-sessions-as-in-memory-map pattern, generalized to the spec's
// upsert/session-gap/change-significance rules.
package store

import (
	"context"
	"database/sql"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/adsbgo/pipeline/internal/assembler"
	"github.com/adsbgo/pipeline/internal/db"
	"github.com/adsbgo/pipeline/internal/model"
)

// Recorder is the subset of internal/metrics.Recorder this package needs.
type Recorder interface {
	IncrementCounter(name string)
}

// Cache is the subset of internal/redis.Client used to rehydrate
// in-memory session/throttle state across a worker restart. Optional: a
// nil Cache disables rehydration and every restart starts cold, which is
// still correct, just loses session continuity across a crash.
type Cache interface {
	GetSession(ctx context.Context, icaoHex string) (*model.FlightSession, error)
	StoreSession(ctx context.Context, icaoHex string, sess model.FlightSession) error
	DeleteSession(ctx context.Context, icaoHex string) error
	GetLastSample(ctx context.Context, icaoHex string) (*model.PathSample, error)
	StoreLastSample(ctx context.Context, icaoHex string, sample model.PathSample) error
	DeleteLastSample(ctx context.Context, icaoHex string) error
}

// Config holds the store's batching and throttling tunables.
type Config struct {
	FlushInterval time.Duration // default 250ms
	FlushSize     int           // default 64 ops
	SessionGap    time.Duration // default == expiry, 120s
	SaveInterval  time.Duration // default 5s
}

// op is one write against a shared transaction, queued until the next
// flush.
type op func(tx *sql.Tx) error

type sessionInfo struct {
	id        string
	startTime time.Time
	lastSeen  time.Time
}

// Store is the DB worker's owning task.
type Store struct {
	client *db.Client
	cache  Cache
	cfg    Config
	log    *slog.Logger
	rec    Recorder

	openSessions  map[string]*sessionInfo
	lastPersisted map[string]model.PathSample
	pending       []op
}

// New creates a Store. cache may be nil, in which case the worker starts
// cold on every restart instead of rehydrating open sessions and the
// persistence throttle from Redis. Call Run to start its owning task.
func New(client *db.Client, cache Cache, cfg Config, log *slog.Logger, rec Recorder) *Store {
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 250 * time.Millisecond
	}
	if cfg.FlushSize == 0 {
		cfg.FlushSize = 64
	}
	return &Store{
		client:        client,
		cache:         cache,
		cfg:           cfg,
		log:           log,
		rec:           rec,
		openSessions:  make(map[string]*sessionInfo),
		lastPersisted: make(map[string]model.PathSample),
	}
}

// Run blocks on samples and sessionEvents until ctx is cancelled, batching
// writes on whichever of FlushInterval/FlushSize comes first. On
// cancellation it flushes any remaining batch before returning.
func (s *Store) Run(ctx context.Context, samples <-chan model.PathSample, sessionEvents <-chan assembler.SessionCloseEvent) error {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush()
			if err := s.client.Checkpoint(); err != nil {
				s.log.Warn("checkpoint failed on shutdown", "error", err)
			}
			return nil

		case sample, ok := <-samples:
			if !ok {
				s.flush()
				return nil
			}
			s.pending = append(s.pending, s.buildSampleOps(sample)...)
			if len(s.pending) >= s.cfg.FlushSize {
				s.flush()
			}

		case ev, ok := <-sessionEvents:
			if !ok {
				continue
			}
			s.pending = append(s.pending, s.buildSessionCloseOps(ev)...)
			if len(s.pending) >= s.cfg.FlushSize {
				s.flush()
			}

		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *Store) buildSampleOps(sample model.PathSample) []op {
	icaoHex := model.ICAOHex(sample.ICAO)
	callsign := sample.Callsign
	ts := sample.Ts

	ops := []op{
		func(tx *sql.Tx) error { return db.UpsertAircraft(tx, icaoHex, callsign, ts) },
	}

	sess, hasSession := s.openSessions[icaoHex]
	if !hasSession {
		sess, hasSession = s.rehydrateSession(icaoHex, ts)
		if hasSession {
			s.openSessions[icaoHex] = sess
		}
	}

	switch {
	case !hasSession:
		sess = s.openNewSession(icaoHex, ts)
		ops = append(ops, openSessionOp(sess.id, icaoHex, ts))
		s.cacheStoreSession(icaoHex, sess)

	case ts.Sub(sess.lastSeen) > s.cfg.SessionGap:
		ops = append(ops, closeSessionOp(sess.id, sess.lastSeen))
		sess = s.openNewSession(icaoHex, ts)
		ops = append(ops, openSessionOp(sess.id, icaoHex, ts))
		s.cacheStoreSession(icaoHex, sess)

	default:
		sess.lastSeen = ts
	}

	if s.significant(icaoHex, sample) {
		sessionID := sess.id
		ops = append(ops, func(tx *sql.Tx) error { return db.InsertPath(tx, sessionID, sample) })
		s.lastPersisted[icaoHex] = sample
		s.cacheStoreLastSample(icaoHex, sample)
	}

	return ops
}

func (s *Store) openNewSession(icaoHex string, ts time.Time) *sessionInfo {
	sess := &sessionInfo{id: uuid.New().String(), startTime: ts, lastSeen: ts}
	s.openSessions[icaoHex] = sess
	return sess
}

// rehydrateSession consults the cache for a session that survived a
// worker restart. A cached session older than the gap is treated as
// stale and ignored, letting the caller mint a fresh one instead.
func (s *Store) rehydrateSession(icaoHex string, ts time.Time) (*sessionInfo, bool) {
	if s.cache == nil {
		return nil, false
	}
	cached, err := s.cache.GetSession(context.Background(), icaoHex)
	if err != nil {
		s.log.Warn("session cache lookup failed", "icao", icaoHex, "error", err)
		return nil, false
	}
	if cached == nil || ts.Sub(cached.StartTime) > s.cfg.SessionGap {
		return nil, false
	}
	return &sessionInfo{id: cached.ID, startTime: cached.StartTime, lastSeen: ts}, true
}

// rehydrateLastSample consults the cache for the last-persisted sample
// this worker saw before a restart, so the change-significance throttle
// doesn't re-treat the first post-restart sample as unconditionally
// significant. On a hit, the value is cached in-memory too so subsequent
// calls for this ICAO don't round-trip to Redis.
func (s *Store) rehydrateLastSample(icaoHex string) (model.PathSample, bool) {
	if s.cache == nil {
		return model.PathSample{}, false
	}
	cached, err := s.cache.GetLastSample(context.Background(), icaoHex)
	if err != nil {
		s.log.Warn("last-sample cache lookup failed", "icao", icaoHex, "error", err)
		return model.PathSample{}, false
	}
	if cached == nil {
		return model.PathSample{}, false
	}
	s.lastPersisted[icaoHex] = *cached
	return *cached, true
}

func (s *Store) cacheStoreSession(icaoHex string, sess *sessionInfo) {
	if s.cache == nil {
		return
	}
	fs := model.FlightSession{ID: sess.id, AircraftICAO: model.ICAOFromHex(icaoHex), StartTime: sess.startTime}
	if err := s.cache.StoreSession(context.Background(), icaoHex, fs); err != nil {
		s.log.Warn("session cache write failed", "icao", icaoHex, "error", err)
	}
}

func (s *Store) cacheStoreLastSample(icaoHex string, sample model.PathSample) {
	if s.cache == nil {
		return
	}
	if err := s.cache.StoreLastSample(context.Background(), icaoHex, sample); err != nil {
		s.log.Warn("last-sample cache write failed", "icao", icaoHex, "error", err)
	}
}

func openSessionOp(id, icaoHex string, start time.Time) op {
	return func(tx *sql.Tx) error { return db.OpenSession(tx, id, icaoHex, start) }
}

func closeSessionOp(id string, end time.Time) op {
	return func(tx *sql.Tx) error { return db.CloseSession(tx, id, end) }
}

// buildSessionCloseOps applies an expiry-scan session-close event from
// component C directly: close the open session and forget it, per
// spec.md §4.6 step 4.
func (s *Store) buildSessionCloseOps(ev assembler.SessionCloseEvent) []op {
	icaoHex := model.ICAOHex(ev.ICAO)
	sess, ok := s.openSessions[icaoHex]
	if !ok {
		return nil
	}
	delete(s.openSessions, icaoHex)
	delete(s.lastPersisted, icaoHex)
	s.cacheDeleteSession(icaoHex)
	return []op{closeSessionOp(sess.id, ev.LastSeen)}
}

func (s *Store) cacheDeleteSession(icaoHex string) {
	if s.cache == nil {
		return
	}
	ctx := context.Background()
	if err := s.cache.DeleteSession(ctx, icaoHex); err != nil {
		s.log.Warn("session cache delete failed", "icao", icaoHex, "error", err)
	}
	if err := s.cache.DeleteLastSample(ctx, icaoHex); err != nil {
		s.log.Warn("last-sample cache delete failed", "icao", icaoHex, "error", err)
	}
}

// significant reports whether sample differs enough from the last
// persisted row for this aircraft to warrant a new path row, per
// spec.md §4.6 step 3.
func (s *Store) significant(icaoHex string, sample model.PathSample) bool {
	prev, ok := s.lastPersisted[icaoHex]
	if !ok {
		prev, ok = s.rehydrateLastSample(icaoHex)
	}
	if !ok {
		return true
	}
	if haversineMeters(prev.Lat, prev.Lon, sample.Lat, sample.Lon) > 1 {
		return true
	}
	if absInt(sample.AltFt-prev.AltFt) > 10 {
		return true
	}
	return sample.Ts.Sub(prev.Ts) >= s.cfg.SaveInterval
}

// flush commits the pending batch, retrying twice with 100ms backoff; on
// a third failure the batch is logged and discarded rather than blocking
// the worker indefinitely, per spec.md §4.6's failure semantics.
func (s *Store) flush() {
	if len(s.pending) == 0 {
		return
	}
	batch := s.pending
	s.pending = nil

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = s.commit(batch); err == nil {
			return
		}
		if attempt < 2 {
			time.Sleep(100 * time.Millisecond)
		}
	}
	s.log.Error("batch write failed after retries, discarding", "ops", len(batch), "error", err)
	s.rec.IncrementCounter("batch_write_discarded")
}

func (s *Store) commit(batch []op) error {
	tx, err := s.client.Begin()
	if err != nil {
		return err
	}
	for _, o := range batch {
		if err := o(tx); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// earthRadiusMeters is the mean Earth radius used by the haversine
// distance approximation below.
const earthRadiusMeters = 6371000.0

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
