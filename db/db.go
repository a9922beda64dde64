package db

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"

	"nba-stats-scraper/config"

	_ "github.com/lib/pq"
)

// schema holds every table of the store
const schema = "nba_stats"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection from DATABASE_URL or the DB_* variables
func NewDB() (*DB, error) {
	connStr := config.GetEnvOrDefault("DATABASE_URL", "")
	if connStr == "" {
		host := config.GetEnvOrDefault("DB_HOST", "localhost")
		port := config.GetEnvOrDefault("DB_PORT", "5432")
		user := config.GetEnvOrDefault("DB_USER", "nba_stats")
		password := config.GetEnvOrDefault("DB_PASSWORD", "")
		dbname := config.GetEnvOrDefault("DB_NAME", "nba_stats")
		sslmode := config.GetEnvOrDefault("DB_SSLMODE", "disable")

		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}
	connStr = withSearchPath(connStr, schema)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// withSearchPath adds search_path to a connection string that lacks one, so
// every pooled connection resolves tables in the schema. Both URL and
// key=value forms are accepted.
func withSearchPath(connStr, schema string) string {
	if strings.Contains(connStr, "search_path") {
		return connStr
	}
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return connStr
		}
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return strings.TrimSpace(connStr + " search_path=" + schema)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist
func (db *DB) initSchema() error {
	// The schema may already exist and be owned by another role
	_, err := db.conn.Exec(`CREATE SCHEMA IF NOT EXISTS nba_stats`)
	if err != nil {
		log.Printf("Note: Could not create schema (may already exist): %v\n", err)
	}

	_, err = db.conn.Exec(`SET search_path TO nba_stats`)
	if err != nil {
		return fmt.Errorf("failed to set search path: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			base_url TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
			combinations INTEGER NOT NULL DEFAULT 0,
			rows_count INTEGER NOT NULL DEFAULT 0,
			skipped_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT valid_status CHECK (status IN ('in_progress', 'done', 'partial', 'failed'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS skipped_combinations (
			id SERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			family VARCHAR(32) NOT NULL,
			season VARCHAR(16) NOT NULL,
			conference VARCHAR(32) NOT NULL,
			position VARCHAR(32) NOT NULL,
			state VARCHAR(32) NOT NULL,
			error TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create skipped_combinations table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS stat_values (
			run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			dataset VARCHAR(16) NOT NULL,
			team TEXT NOT NULL,
			season VARCHAR(16) NOT NULL,
			conference VARCHAR(32) NOT NULL,
			position VARCHAR(32) NOT NULL,
			category TEXT NOT NULL,
			value DOUBLE PRECISION,
			CONSTRAINT valid_dataset CHECK (dataset IN ('merged', 'synthetic'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create stat_values table: %w", err)
	}

	_, err = db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`)
	if err != nil {
		log.Printf("Warning: Failed to create index on runs.status: %v\n", err)
	}

	_, err = db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_skipped_run_id ON skipped_combinations(run_id)`)
	if err != nil {
		log.Printf("Warning: Failed to create index on skipped_combinations.run_id: %v\n", err)
	}

	_, err = db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_stat_values_run ON stat_values(run_id, dataset)`)
	if err != nil {
		log.Printf("Warning: Failed to create index on stat_values.run_id: %v\n", err)
	}

	log.Println("Database schema initialized successfully")
	return nil
}
