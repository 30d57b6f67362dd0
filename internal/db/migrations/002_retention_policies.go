package migrations

// RetentionPolicies bounds how long raw path history is kept and adds a
// continuous aggregate for cheap hourly traffic counts.
var RetentionPolicies = &Migration{
	ID:   "002_retention_policies",
	Name: "002_retention_policies",
	UpSQL: `
	-- Path history older than 30 days is dropped automatically.
	SELECT add_retention_policy('path', INTERVAL '30 days');

	CREATE MATERIALIZED VIEW IF NOT EXISTS path_hourly
	WITH (timescaledb.continuous) AS
	SELECT
		time_bucket('1 hour', ts) AS hour,
		icao,
		COUNT(*) AS sample_count
	FROM path
	GROUP BY hour, icao
	WITH NO DATA;
	`,
	DownSQL: `
	DROP MATERIALIZED VIEW IF EXISTS path_hourly;
	SELECT remove_retention_policy('path');
	`,
}
