package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know; queries are written with '?'
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// ParseURL picks the driver for a DATABASE_URL.
// postgres:// and postgresql:// URLs go to lib/pq, anything else is a SQLite file path
// (optionally prefixed with sqlite://) or ":memory:".
func ParseURL(dbURL string) (driver, dsn string) {
	dbURL = strings.TrimSpace(dbURL)
	lower := strings.ToLower(dbURL)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres, dbURL
	}

	path := strings.TrimPrefix(dbURL, "sqlite://")
	if path == "" || path == ":memory:" {
		return DriverSQLite, "file::memory:?_pragma=foreign_keys(1)"
	}
	return DriverSQLite, "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func Connect(dbURL string) (*sqlx.DB, error) {
	driver, dsn := ParseURL(dbURL)

	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 Driver: %s", driver)
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	if driver == DriverSQLite && !strings.Contains(dsn, ":memory:") {
		path := strings.TrimPrefix(strings.SplitN(dsn, "?", 2)[0], "file:")
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
			}
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT sqlx.Connect()")
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite has a single writer; one connection serializes every request's
		// writes and keeps an in-memory database alive across queries.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	}

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

// Migrate creates the schema. Every statement is valid on both SQLite and Postgres.
func Migrate(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('admin', 'driver')),
			created_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS deliveries (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			origin TEXT NOT NULL,
			destination TEXT NOT NULL,
			scheduled_date TEXT,
			notes TEXT,
			created_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS delivery_assignments (
			id TEXT PRIMARY KEY,
			delivery_id TEXT NOT NULL,
			driver_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'in_progress', 'completed')),
			assigned_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			FOREIGN KEY (delivery_id) REFERENCES deliveries(id) ON DELETE CASCADE,
			FOREIGN KEY (driver_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// At most one assignment per (delivery, driver)
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_delivery_driver ON delivery_assignments(delivery_id, driver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_driver_id ON delivery_assignments(driver_id)`,

		`CREATE TABLE IF NOT EXISTS trips (
			id TEXT PRIMARY KEY,
			driver_id TEXT NOT NULL,
			started_at BIGINT NOT NULL,
			ended_at BIGINT,
			total_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'ongoing' CHECK(status IN ('ongoing', 'completed')),
			FOREIGN KEY (driver_id) REFERENCES users(id) ON DELETE CASCADE,
			CHECK (total_distance >= 0)
		)`,

		// A driver has at most one ongoing trip; backs the check in TripTracker.Start
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_trips_one_ongoing_per_driver ON trips(driver_id) WHERE status = 'ongoing'`,
		`CREATE INDEX IF NOT EXISTS idx_trips_driver_started ON trips(driver_id, started_at)`,

		`CREATE TABLE IF NOT EXISTS trip_deliveries (
			trip_id TEXT NOT NULL,
			delivery_id TEXT NOT NULL,
			PRIMARY KEY (trip_id, delivery_id),
			FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE,
			FOREIGN KEY (delivery_id) REFERENCES deliveries(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS trip_points (
			id TEXT PRIMARY KEY,
			trip_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			recorded_at BIGINT NOT NULL,
			distance_from_last DOUBLE PRECISION NOT NULL DEFAULT 0,
			FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE,
			UNIQUE (trip_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trip_points_trip_recorded ON trip_points(trip_id, recorded_at)`,

		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL CHECK(device_type IN ('ios', 'android', 'web')),
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fcm_tokens_user_id ON fcm_tokens(user_id)`,
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("migrate: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range migrations {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit tx: %w", err)
	}
	return nil
}
