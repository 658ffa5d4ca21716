package repository

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_name TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS distributions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	dist_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS distribution_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	dist_id INTEGER NOT NULL REFERENCES distributions(id),
	version_number TEXT NOT NULL,
	version_date TEXT NOT NULL DEFAULT '',
	version_status TEXT NOT NULL DEFAULT '',
	version_meta TEXT NOT NULL DEFAULT '',
	UNIQUE(dist_id, version_number)
);

CREATE TABLE IF NOT EXISTS machines (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	secret_key TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT 0,
	is_approved BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	result_uuid TEXT NOT NULL UNIQUE,
	machine_id INTEGER NOT NULL REFERENCES machines(id),
	dist_version_id INTEGER NOT NULL REFERENCES distribution_versions(id),
	pg_version TEXT NOT NULL,
	pg_config TEXT NOT NULL DEFAULT '',
	env_info TEXT NOT NULL DEFAULT '',
	install_result TEXT,
	load_result TEXT,
	check_result TEXT,
	install_duration INTEGER,
	load_duration INTEGER,
	check_duration INTEGER,
	log_install BLOB,
	log_load BLOB,
	log_check BLOB,
	check_diff BLOB,
	submit_date TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_triple
	ON results(machine_id, dist_version_id, pg_version);
CREATE INDEX IF NOT EXISTS idx_results_submit_date
	ON results(submit_date);
`

// Open opens the store and creates the schema when missing. The
// uniqueness of results.result_uuid lives here, not in application logic;
// it is the replay defense.
func Open(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// IsUniqueViolation reports whether err is a storage uniqueness-constraint
// failure. Matched by message because database/sql does not expose a
// portable error code.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
