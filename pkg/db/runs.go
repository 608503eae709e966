package db

import (
	"database/sql"
	"fmt"
	"time"
)

// RunRecord is one persisted analysis run.
type RunRecord struct {
	RunID             string
	Query             string
	Stage             string
	Segments          int
	Confidence        float64
	ContainerSelector string
	ItemSelector      string
	SchemaJSON        string
	InputTokens       int
	OutputTokens      int
	CreatedAt         time.Time
}

// OracleCallRecord is the accounting row for one inference request.
type OracleCallRecord struct {
	CallID       int64
	RunID        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMS    int64
	Success      bool
	Error        string
	CreatedAt    time.Time
}

// InsertRun persists a completed analysis.
func (db *DB) InsertRun(r RunRecord) error {
	_, err := db.Exec(`
		INSERT INTO runs (run_id, query, stage, segments, confidence,
			container_selector, item_selector, schema_json,
			input_tokens, output_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Query, r.Stage, r.Segments, r.Confidence,
		r.ContainerSelector, r.ItemSelector, r.SchemaJSON,
		r.InputTokens, r.OutputTokens)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// InsertOracleCall records one inference request under a run.
func (db *DB) InsertOracleCall(c OracleCallRecord) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO oracle_calls (run_id, purpose, input_tokens, output_tokens,
			latency_ms, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.RunID, c.Purpose, c.InputTokens, c.OutputTokens,
		c.LatencyMS, c.Success, c.Error)
	if err != nil {
		return 0, fmt.Errorf("failed to insert oracle call: %w", err)
	}
	return result.LastInsertId()
}

// GetRun returns one run by ID.
func (db *DB) GetRun(runID string) (*RunRecord, error) {
	var r RunRecord
	err := db.QueryRow(`
		SELECT run_id, query, stage, segments, confidence,
			container_selector, item_selector, schema_json,
			input_tokens, output_tokens, created_at
		FROM runs WHERE run_id = ?
	`, runID).Scan(&r.RunID, &r.Query, &r.Stage, &r.Segments, &r.Confidence,
		&r.ContainerSelector, &r.ItemSelector, &r.SchemaJSON,
		&r.InputTokens, &r.OutputTokens, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT run_id, query, stage, segments, confidence,
			container_selector, item_selector, schema_json,
			input_tokens, output_tokens, created_at
		FROM runs
		ORDER BY created_at DESC, run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.Query, &r.Stage, &r.Segments, &r.Confidence,
			&r.ContainerSelector, &r.ItemSelector, &r.SchemaJSON,
			&r.InputTokens, &r.OutputTokens, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListOracleCalls returns the calls recorded under a run, oldest first.
func (db *DB) ListOracleCalls(runID string) ([]OracleCallRecord, error) {
	rows, err := db.Query(`
		SELECT call_id, run_id, purpose, input_tokens, output_tokens,
			latency_ms, success, error, created_at
		FROM oracle_calls
		WHERE run_id = ?
		ORDER BY call_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list oracle calls: %w", err)
	}
	defer rows.Close()

	var calls []OracleCallRecord
	for rows.Next() {
		var c OracleCallRecord
		var errText sql.NullString
		if err := rows.Scan(&c.CallID, &c.RunID, &c.Purpose, &c.InputTokens, &c.OutputTokens,
			&c.LatencyMS, &c.Success, &errText, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan oracle call: %w", err)
		}
		c.Error = errText.String
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
