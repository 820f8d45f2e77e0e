package postgres

// schemaStatements are idempotent and run in order by Migrate.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS offices (
		office_id BIGSERIAL PRIMARY KEY,
		office_name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS floors (
		floor_id BIGSERIAL PRIMARY KEY,
		office_id BIGINT NOT NULL REFERENCES offices(office_id),
		floor_name TEXT NOT NULL,
		UNIQUE (office_id, floor_name)
	)`,
	`CREATE TABLE IF NOT EXISTS sectors (
		sector_id BIGSERIAL PRIMARY KEY,
		floor_id BIGINT NOT NULL REFERENCES floors(floor_id),
		sector_name TEXT NOT NULL,
		UNIQUE (floor_id, sector_name)
	)`,
	`CREATE TABLE IF NOT EXISTS statuses (
		status_id BIGINT PRIMARY KEY,
		status_name TEXT NOT NULL UNIQUE
	)`,
	`INSERT INTO statuses (status_id, status_name) VALUES
		(1, 'Pending'), (2, 'Active'), (3, 'Canceled'), (4, 'Completed')
	ON CONFLICT (status_id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS desks (
		desk_id BIGSERIAL PRIMARY KEY,
		desk_code TEXT NOT NULL UNIQUE,
		sector_id BIGINT NOT NULL REFERENCES sectors(sector_id),
		local_id INTEGER NOT NULL CHECK (local_id > 0),
		description TEXT NOT NULL DEFAULT '',
		UNIQUE (sector_id, local_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		booking_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(user_id),
		desk_code TEXT NOT NULL REFERENCES desks(desk_code),
		start_at TIMESTAMPTZ NOT NULL,
		end_at TIMESTAMPTZ NOT NULL,
		status_id BIGINT NOT NULL REFERENCES statuses(status_id),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT bookings_interval_check CHECK (end_at > start_at),
		CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
			desk_code WITH =,
			tstzrange(start_at, end_at, '[)') WITH &&
		) WHERE (status_id <> 3)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_user_status ON bookings (user_id, status_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_status_end ON bookings (status_id, end_at)`,
	`CREATE OR REPLACE FUNCTION bookings_terminal_guard() RETURNS trigger AS $$
	BEGIN
		IF OLD.status_id IN (3, 4) THEN
			RAISE EXCEPTION 'booking is terminal';
		END IF;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS bookings_terminal_immutable ON bookings`,
	`CREATE TRIGGER bookings_terminal_immutable BEFORE UPDATE ON bookings
		FOR EACH ROW EXECUTE FUNCTION bookings_terminal_guard()`,
	`CREATE TABLE IF NOT EXISTS logs (
		log_id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		outcome TEXT NOT NULL CHECK (outcome IN ('Success', 'Failure')),
		component TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_created_at ON logs (created_at)`,
}
