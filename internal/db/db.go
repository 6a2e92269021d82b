// Package db provides database connection handling for the API server.
package db

import (
	"database/sql"
	"time"
)

// Pool defaults sized for a single API replica. The verification pipeline
// holds a connection for the duration of each attempt, so the pool stays
// comfortably above the rate limiter's per-window ceiling.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 5 * time.Minute
)

// Open opens a PostgreSQL connection pool with the default settings.
// It does not verify connectivity; callers should ping with a timeout.
func Open(databaseURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(DefaultMaxOpenConns)
	conn.SetMaxIdleConns(DefaultMaxIdleConns)
	conn.SetConnMaxLifetime(DefaultConnMaxLifetime)

	return conn, nil
}
