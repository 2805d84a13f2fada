// Package db persists imported telemetry sessions and generated analysis
// reports in sqlite. The analysis core never touches the database; the API
// and CLI shells load a session, run the pipeline, and store the result.
package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/cogload.report/internal/telemetry"
)

type DB struct {
	*sql.DB
	path string
}

// NewDB opens (creating if needed) the sqlite database at path and ensures
// the base schema exists. Later schema changes ship as migrations; the
// inline schema keeps a fresh checkout usable without running the migrate
// CLI first.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			source            TEXT NOT NULL,
			sample_count      BIGINT NOT NULL,
			duration_seconds  DOUBLE NOT NULL,
			distance_meters   DOUBLE NOT NULL,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS samples (
			session_id        TEXT NOT NULL,
			idx               BIGINT NOT NULL,
			timestamp         DOUBLE NOT NULL,
			distance          DOUBLE NOT NULL,
			speed             DOUBLE NOT NULL,
			steering_angle    DOUBLE NOT NULL,
			throttle          DOUBLE NOT NULL,
			brake             DOUBLE NOT NULL,
			PRIMARY KEY (session_id, idx),
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);
		CREATE TABLE IF NOT EXISTS reports (
			run_id            TEXT PRIMARY KEY,
			session_id        TEXT NOT NULL,
			params_json       TEXT NOT NULL,
			report_json       TEXT NOT NULL,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{DB: db, path: path}, nil
}

// Session describes one imported lap.
type Session struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Source          string    `json:"source"` // csv or pcap
	SampleCount     int       `json:"sample_count"`
	DurationSeconds float64   `json:"duration_seconds"`
	DistanceMeters  float64   `json:"distance_meters"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateSession stores a session and its samples in one transaction and
// returns the generated session ID.
func (db *DB) CreateSession(name, source string, samples telemetry.Series) (string, error) {
	if err := samples.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, name, source, sample_count, duration_seconds, distance_meters)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, source, len(samples), samples.Duration(), samples.TotalDistance(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO samples (session_id, idx, timestamp, distance, speed, steering_angle, throttle, brake)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return "", fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range samples {
		if _, err := stmt.Exec(id, i, s.Timestamp, s.Distance, s.Speed, s.SteeringAngle, s.Throttle, s.Brake); err != nil {
			return "", fmt.Errorf("failed to insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit session: %w", err)
	}
	return id, nil
}

// GetSession retrieves session metadata by ID.
func (db *DB) GetSession(id string) (*Session, error) {
	var s Session
	err := db.QueryRow(
		`SELECT id, name, source, sample_count, duration_seconds, distance_meters, created_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.Source, &s.SampleCount, &s.DurationSeconds, &s.DistanceMeters, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// ListSessions returns the most recent limit sessions.
func (db *DB) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT id, name, source, sample_count, duration_seconds, distance_meters, created_at
		 FROM sessions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Name, &s.Source, &s.SampleCount, &s.DurationSeconds, &s.DistanceMeters, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetSamples loads a session's full sample series in index order.
func (db *DB) GetSamples(sessionID string) (telemetry.Series, error) {
	rows, err := db.Query(
		`SELECT timestamp, distance, speed, steering_angle, throttle, brake
		 FROM samples WHERE session_id = ? ORDER BY idx`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var series telemetry.Series
	for rows.Next() {
		var s telemetry.Sample
		if err := rows.Scan(&s.Timestamp, &s.Distance, &s.Speed, &s.SteeringAngle, &s.Throttle, &s.Brake); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		series = append(series, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no samples for session %s", sessionID)
	}
	return series, nil
}

// DeleteSession removes a session, its samples, and its reports.
func (db *DB) DeleteSession(id string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM reports WHERE session_id = ?`,
		`DELETE FROM samples WHERE session_id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("failed to delete session rows: %w", err)
		}
	}
	res, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session not found")
	}
	return tx.Commit()
}

// AttachAdminRoutes mounts the tsweb debug handler with a live tailSQL
// browser over this database and a backup download endpoint. These routes
// are for operators, not the dashboard.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "CogLoad DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
