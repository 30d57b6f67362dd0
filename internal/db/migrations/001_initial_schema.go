package migrations

import "time"

// InitialSchema creates the aircraft/flight_session/path schema described
// in spec.md §4.6 and §6.
var InitialSchema = &Migration{
	ID:   "001_initial_schema",
	Name: "001_initial_schema",
	UpSQL: `
		-- Enable TimescaleDB extension
		CREATE EXTENSION IF NOT EXISTS timescaledb;

		-- One row per observed ICAO address.
		CREATE TABLE IF NOT EXISTS aircraft (
			icao TEXT PRIMARY KEY,
			callsign TEXT,
			first_seen TIMESTAMPTZ NOT NULL,
			last_seen TIMESTAMPTZ NOT NULL
		);

		-- A contiguous interval during which an aircraft was observed.
		CREATE TABLE IF NOT EXISTS flight_session (
			id TEXT PRIMARY KEY,
			aircraft_icao TEXT NOT NULL REFERENCES aircraft (icao),
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_flight_session_icao ON flight_session (aircraft_icao);
		CREATE INDEX IF NOT EXISTS idx_flight_session_open ON flight_session (aircraft_icao) WHERE end_time IS NULL;

		-- Append-only position/velocity history.
		CREATE TABLE IF NOT EXISTS path (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES flight_session (id),
			icao TEXT NOT NULL REFERENCES aircraft (icao),
			ts TIMESTAMPTZ NOT NULL,
			ts_iso TEXT NOT NULL,
			lat DOUBLE PRECISION NOT NULL,
			lon DOUBLE PRECISION NOT NULL,
			alt INTEGER,
			velocity DOUBLE PRECISION,
			track DOUBLE PRECISION,
			vertical_rate INTEGER,
			type SMALLINT NOT NULL
		);

		SELECT create_hypertable('path', 'ts', if_not_exists => TRUE);

		CREATE INDEX IF NOT EXISTS idx_path_icao_ts ON path (icao, ts);
	`,
	DownSQL: `
		DROP TABLE IF EXISTS path;
		DROP TABLE IF EXISTS flight_session;
		DROP TABLE IF EXISTS aircraft;
	`,
	CreatedAt: time.Now(),
}
