package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StoredReport is a persisted analysis run. Params and Report hold the
// pipeline parameters and insights report as raw JSON so the storage layer
// stays decoupled from the analysis types.
type StoredReport struct {
	RunID     string          `json:"run_id"`
	SessionID string          `json:"session_id"`
	Params    json.RawMessage `json:"params"`
	Report    json.RawMessage `json:"report"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaveReport stores the result of an analysis run against a session and
// returns the generated run ID.
func (db *DB) SaveReport(sessionID string, params, report interface{}) (string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	runID := uuid.NewString()
	_, err = db.Exec(
		`INSERT INTO reports (run_id, session_id, params_json, report_json) VALUES (?, ?, ?, ?)`,
		runID, sessionID, string(paramsJSON), string(reportJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert report: %w", err)
	}
	return runID, nil
}

// GetReport retrieves a stored analysis run by its run ID.
func (db *DB) GetReport(runID string) (*StoredReport, error) {
	var (
		r              StoredReport
		params, report string
	)
	err := db.QueryRow(
		`SELECT run_id, session_id, params_json, report_json, created_at FROM reports WHERE run_id = ?`,
		runID,
	).Scan(&r.RunID, &r.SessionID, &params, &report, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	r.Params = json.RawMessage(params)
	r.Report = json.RawMessage(report)
	return &r, nil
}

// ListReports returns all stored runs for a session, newest first.
func (db *DB) ListReports(sessionID string) ([]StoredReport, error) {
	rows, err := db.Query(
		`SELECT run_id, session_id, params_json, report_json, created_at
		 FROM reports WHERE session_id = ? ORDER BY created_at DESC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []StoredReport
	for rows.Next() {
		var (
			r              StoredReport
			params, report string
		)
		if err := rows.Scan(&r.RunID, &r.SessionID, &params, &report, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.Params = json.RawMessage(params)
		r.Report = json.RawMessage(report)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
