// Package sqliteaudit persists the engine's pruning audit log to a SQLite
// file so history survives process restarts. The engine itself only ever
// keeps the audit log in memory (§3); this adapter is an optional,
// operator-wired extension, not something the core depends on.
package sqliteaudit

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/99souls/atrwac/engine/models"
)

// Sink is a durable append-only store for models.AuditRow records.
type Sink struct {
	db *sql.DB
}

// Open creates (if needed) the audit table at path and returns a ready Sink.
func Open(path string) (*Sink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqliteaudit: open %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pruning_audit (
			time        TEXT    NOT NULL,
			agent_id    TEXT    NOT NULL,
			agent_name  TEXT    NOT NULL,
			reason      TEXT    NOT NULL,
			final_score REAL    NOT NULL,
			rank        INTEGER NOT NULL,
			phase       TEXT    NOT NULL,
			PRIMARY KEY (time, agent_id)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqliteaudit: create table: %w", err)
	}
	return &Sink{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Sink) Close() error { return s.db.Close() }

// Persist inserts every row not already recorded. Safe to call repeatedly
// with overlapping slices (e.g. the full result of GetPruningHistory on
// every poll) — duplicates are silently ignored by the primary key.
func (s *Sink) Persist(ctx context.Context, rows []models.AuditRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqliteaudit: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO pruning_audit
			(time, agent_id, agent_name, reason, final_score, rank, phase)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqliteaudit: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Time.UTC().Format(timeLayout),
			row.AgentID, row.AgentName, row.Reason, row.FinalScore, row.Rank, string(row.Phase)); err != nil {
			return fmt.Errorf("sqliteaudit: insert row for %s: %w", row.AgentID, err)
		}
	}
	return tx.Commit()
}

// All returns every persisted row, oldest first.
func (s *Sink) All(ctx context.Context) ([]models.AuditRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, agent_id, agent_name, reason, final_score, rank, phase
		FROM pruning_audit ORDER BY time ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqliteaudit: query: %w", err)
	}
	defer rows.Close()

	var out []models.AuditRow
	for rows.Next() {
		var (
			r        models.AuditRow
			timeText string
			phase    string
		)
		if err := rows.Scan(&timeText, &r.AgentID, &r.AgentName, &r.Reason, &r.FinalScore, &r.Rank, &phase); err != nil {
			return nil, fmt.Errorf("sqliteaudit: scan row: %w", err)
		}
		t, err := parseTime(timeText)
		if err != nil {
			return nil, err
		}
		r.Time = t
		r.Phase = models.Phase(phase)
		out = append(out, r)
	}
	return out, rows.Err()
}
