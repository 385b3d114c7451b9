package store

import "database/sql"

// Schema is applied at startup; every statement is idempotent so restarts are
// safe against an existing database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS teams (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		total_points INT NOT NULL DEFAULT 60,
		event_id TEXT NOT NULL,
		pin_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS teams_event_name_uniq
		ON teams (event_id, LOWER(name))`,
	`CREATE TABLE IF NOT EXISTS challenge_access (
		id BIGSERIAL PRIMARY KEY,
		team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		challenge_id TEXT NOT NULL,
		unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (team_id, challenge_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ctf_attempts (
		id BIGSERIAL PRIMARY KEY,
		team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		ctf_id TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		points_earned INT NOT NULL DEFAULT 0,
		UNIQUE (team_id, ctf_id, challenge_id)
	)`,
	`CREATE TABLE IF NOT EXISTS hint_purchases (
		id BIGSERIAL PRIMARY KEY,
		team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		ctf_id TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		hint_index INT NOT NULL,
		cost INT NOT NULL,
		purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (team_id, ctf_id, challenge_id, hint_index)
	)`,
	`CREATE TABLE IF NOT EXISTS timer_state (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		started_at TIMESTAMPTZ,
		duration_seconds INT NOT NULL DEFAULT 0
	)`,
	`INSERT INTO timer_state (id, started_at, duration_seconds)
		VALUES (1, NULL, 0) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		team_id BIGINT,
		event_id TEXT,
		ip_address TEXT,
		message TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the tables the store needs if they are missing.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
