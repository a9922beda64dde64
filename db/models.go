package db

import (
	"database/sql"
	"fmt"
	"time"

	"nba-stats-scraper/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Run statuses
const (
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusPartial    = "partial"
	StatusFailed     = "failed"
)

// Datasets stored per run
const (
	DatasetMerged    = "merged"
	DatasetSynthetic = "synthetic"
)

// Run represents one pipeline execution
type Run struct {
	ID           uuid.UUID
	BaseURL      string
	Status       string
	Combinations int
	RowsCount    int
	SkippedCount int
	LastError    sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SkippedCombination is a filter combination that produced no rows
type SkippedCombination struct {
	Family      models.Family
	Combination models.FilterCombination
	State       string
	Error       string
}

// CreateRun registers a new run
func (db *DB) CreateRun(baseURL string) (*Run, error) {
	run := Run{ID: uuid.New(), BaseURL: baseURL}
	err := db.conn.QueryRow(`
		INSERT INTO runs (id, base_url, status)
		VALUES ($1, $2, $3)
		RETURNING status, created_at, updated_at
	`, run.ID, baseURL, StatusInProgress).Scan(&run.Status, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return &run, nil
}

// GetRunByID retrieves a run
func (db *DB) GetRunByID(id uuid.UUID) (*Run, error) {
	var run Run
	err := db.conn.QueryRow(`
		SELECT id, base_url, status, combinations, rows_count, skipped_count, last_error, created_at, updated_at
		FROM runs
		WHERE id = $1
	`, id).Scan(
		&run.ID, &run.BaseURL, &run.Status, &run.Combinations, &run.RowsCount,
		&run.SkippedCount, &run.LastError, &run.CreatedAt, &run.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// FinishRun stores the final counts and status of a run
func (db *DB) FinishRun(id uuid.UUID, status string, combinations, rows, skipped int, runErr error) error {
	var lastError sql.NullString
	if runErr != nil {
		lastError = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := db.conn.Exec(`
		UPDATE runs
		SET status = $1, combinations = $2, rows_count = $3, skipped_count = $4, last_error = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6
	`, status, combinations, rows, skipped, lastError, id)
	return err
}

// SaveSkipped records the combinations a run had to leave out
func (db *DB) SaveSkipped(runID uuid.UUID, skipped []SkippedCombination) error {
	for _, s := range skipped {
		_, err := db.conn.Exec(`
			INSERT INTO skipped_combinations (run_id, family, season, conference, position, state, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, runID, string(s.Family), s.Combination.Season, s.Combination.Conference, s.Combination.Position, s.State, s.Error)
		if err != nil {
			return fmt.Errorf("failed to save skipped combination %s: %w", s.Combination, err)
		}
	}
	return nil
}

// SaveTable bulk-loads every cell of table under dataset using COPY
func (db *DB) SaveTable(runID uuid.UUID, dataset string, table *models.Table) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn("stat_values",
		"run_id", "dataset", "team", "season", "conference", "position", "category", "value"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, cell := range Cells(table) {
		var value sql.NullFloat64
		if cell.Value != nil {
			value = sql.NullFloat64{Float64: *cell.Value, Valid: true}
		}
		_, err := stmt.Exec(runID.String(), dataset, cell.Key.Team, cell.Key.Season,
			cell.Key.Conference, cell.Key.Position, cell.Category, value)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy %s %s: %w", cell.Key, cell.Category, err)
		}
	}

	if _, err := stmt.Exec(); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}
	return tx.Commit()
}

// Cell is one stored value of a table
type Cell struct {
	Key      models.CompositeKey
	Category string
	Value    *float64
}

// Cells flattens a table into one cell per record and category, in table order
func Cells(table *models.Table) []Cell {
	cells := make([]Cell, 0, len(table.Records)*len(table.Categories))
	for _, rec := range table.Records {
		for _, c := range table.Categories {
			cells = append(cells, Cell{Key: rec.Key, Category: c, Value: rec.Values[c]})
		}
	}
	return cells
}
