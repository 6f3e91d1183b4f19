package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:papercopy.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/papercopy?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS quizzes (
  id INTEGER PRIMARY KEY,
  course_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  questions_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS question_usages (
  id INTEGER PRIMARY KEY,
  slots_json TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS papercopy_batches (
  id TEXT PRIMARY KEY,
  quiz_id INTEGER NOT NULL,
  usages TEXT NOT NULL,                       -- comma-separated, creation order
  entry_method TEXT NOT NULL,
  artifact_none TEXT NOT NULL DEFAULT '',
  artifact_with_key TEXT NOT NULL DEFAULT '',
  artifact_key_only TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS papercopy_attempts (
  id INTEGER PRIMARY KEY,
  usage_id INTEGER NOT NULL UNIQUE,           -- one attempt per usage
  user_id INTEGER NOT NULL,
  quiz_id INTEGER NOT NULL,
  attempt_number INTEGER NOT NULL,
  finished BOOLEAN NOT NULL DEFAULT FALSE,
  grade REAL NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_user_quiz
  ON papercopy_attempts(user_id, quiz_id);

CREATE TABLE IF NOT EXISTS roster_users (
  id INTEGER PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  external_id TEXT NOT NULL DEFAULT '',
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  pass_hash TEXT NOT NULL,
  nologin BOOLEAN NOT NULL DEFAULT FALSE,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS roster_enrolments (
  user_id INTEGER NOT NULL REFERENCES roster_users(id) ON DELETE CASCADE,
  course_id INTEGER NOT NULL,
  time_start INTEGER NOT NULL,
  time_end INTEGER NOT NULL,
  PRIMARY KEY (user_id, course_id)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS quizzes (
  id BIGINT PRIMARY KEY,
  course_id BIGINT NOT NULL,
  name TEXT NOT NULL,
  questions_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS question_usages (
  id BIGINT PRIMARY KEY,
  slots_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS papercopy_batches (
  id TEXT PRIMARY KEY,
  quiz_id BIGINT NOT NULL,
  usages TEXT NOT NULL,
  entry_method TEXT NOT NULL,
  artifact_none TEXT NOT NULL DEFAULT '',
  artifact_with_key TEXT NOT NULL DEFAULT '',
  artifact_key_only TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS papercopy_attempts (
  id BIGINT PRIMARY KEY,
  usage_id BIGINT NOT NULL UNIQUE,
  user_id BIGINT NOT NULL,
  quiz_id BIGINT NOT NULL,
  attempt_number INTEGER NOT NULL,
  finished BOOLEAN NOT NULL DEFAULT FALSE,
  grade DOUBLE PRECISION NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_user_quiz
  ON papercopy_attempts(user_id, quiz_id);

CREATE TABLE IF NOT EXISTS roster_users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  external_id TEXT NOT NULL DEFAULT '',
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  pass_hash TEXT NOT NULL,
  nologin BOOLEAN NOT NULL DEFAULT FALSE,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS roster_enrolments (
  user_id BIGINT NOT NULL REFERENCES roster_users(id) ON DELETE CASCADE,
  course_id BIGINT NOT NULL,
  time_start BIGINT NOT NULL,
  time_end BIGINT NOT NULL,
  PRIMARY KEY (user_id, course_id)
);
`
