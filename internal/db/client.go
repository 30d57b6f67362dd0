// Package db is the single-writer Postgres/TimescaleDB client behind
// component F. Every write goes through a caller-managed transaction so
// the store package (internal/store) can batch a tick's worth of
// upserts/inserts into one commit, per spec.md §4.6's durability model.
// Grounded on the teacher's internal/db/client.go (lib/pq, sql.DB wrapper,
// one query per operation), generalized from the flights/aircraft_states
// schema to aircraft/flight_session/path.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/adsbgo/pipeline/internal/model"
)

// Client wraps the Postgres connection pool.
type Client struct {
	db *sql.DB
}

// New opens a connection pool against connStr. It does not verify
// connectivity; callers should Ping or rely on the first query to surface
// a bad DSN.
func New(connStr string) (*Client, error) {
	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Client{db: sqlDB}, nil
}

// NewWithConn wraps an already-open *sql.DB, used by tests to inject a
// sqlmock connection without going through a real DSN.
func NewWithConn(conn *sql.DB) *Client {
	return &Client{db: conn}
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Checkpoint issues Postgres's CHECKPOINT command, used on worker
// shutdown to force a WAL flush before the connection pool is closed.
// Best-effort: a non-superuser connection role will get a permission
// error here, which callers should log and ignore rather than treat as
// fatal.
func (c *Client) Checkpoint() error {
	_, err := c.db.Exec("CHECKPOINT")
	return err
}

// Begin starts a transaction for one batch of writes.
func (c *Client) Begin() (*sql.Tx, error) {
	return c.db.Begin()
}

// UpsertAircraft inserts a new aircraft row with first_seen == last_seen
// == ts, or if the ICAO is already known, advances last_seen to
// max(last_seen, ts) and sets callsign when newly non-empty, per
// spec.md §4.6 step 1.
func UpsertAircraft(tx *sql.Tx, icao string, callsign string, ts time.Time) error {
	const query = `
		INSERT INTO aircraft (icao, callsign, first_seen, last_seen)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (icao) DO UPDATE SET
			last_seen = GREATEST(aircraft.last_seen, EXCLUDED.last_seen),
			callsign = CASE
				WHEN EXCLUDED.callsign <> '' THEN EXCLUDED.callsign
				ELSE aircraft.callsign
			END
	`
	_, err := tx.Exec(query, icao, callsign, ts)
	return err
}

// OpenSession inserts a new flight_session row with no end_time.
func OpenSession(tx *sql.Tx, id, icao string, start time.Time) error {
	const query = `
		INSERT INTO flight_session (id, aircraft_icao, start_time, end_time)
		VALUES ($1, $2, $3, NULL)
	`
	_, err := tx.Exec(query, id, icao, start)
	return err
}

// CloseSession sets end_time on an open session.
func CloseSession(tx *sql.Tx, id string, end time.Time) error {
	const query = `UPDATE flight_session SET end_time = $1 WHERE id = $2`
	_, err := tx.Exec(query, end, id)
	return err
}

// InsertPath appends one row to the path history.
func InsertPath(tx *sql.Tx, sessionID string, sample model.PathSample) error {
	const query = `
		INSERT INTO path (session_id, icao, ts, ts_iso, lat, lon, alt, velocity, track, vertical_rate, type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := tx.Exec(query,
		sessionID,
		model.ICAOHex(sample.ICAO),
		sample.Ts,
		sample.Ts.Format(time.RFC3339),
		sample.Lat, sample.Lon, sample.AltFt,
		sample.Velocity, sample.TrackDeg, sample.VerticalRateFpm,
		int(sample.Kind),
	)
	return err
}

// LastPathSample fetches the most recently persisted path row for an
// ICAO, used by the store's change-significance throttle. Returns
// ok == false if the aircraft has no persisted path rows yet.
func LastPathSample(tx *sql.Tx, icao string) (sample model.PathSample, ok bool, err error) {
	const query = `
		SELECT ts, lat, lon, alt, velocity, track, vertical_rate, type
		FROM path
		WHERE icao = $1
		ORDER BY ts DESC
		LIMIT 1
	`
	var kind int
	row := tx.QueryRow(query, icao)
	if scanErr := row.Scan(&sample.Ts, &sample.Lat, &sample.Lon, &sample.AltFt, &sample.Velocity, &sample.TrackDeg, &sample.VerticalRateFpm, &kind); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return model.PathSample{}, false, nil
		}
		return model.PathSample{}, false, scanErr
	}
	sample.Kind = model.VelocityKind(kind)
	return sample, true, nil
}
