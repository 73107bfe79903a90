// Package store persists validation sessions and their per-round audit
// trails to SQLite, so a reviewer can reconstruct how any page reached its
// final values.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
	"github.com/manikumarthati/extractionWithValidation/internal/validation"
)

// SQLite has no timestamp type; RFC3339Nano strings round-trip reliably and
// stay readable in ad-hoc queries.
const timeLayout = time.RFC3339Nano

// Session is one page's trip through the validation loop.
type Session struct {
	ID              string
	DocumentPath    string
	Page            int
	StartedAt       time.Time
	FinishedAt      time.Time
	RoundsCompleted int
	Reason          constants.TerminationReason
	FinalAccuracy   float32
	FinalRecord     record.Record
}

type AuditStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the SQLite database at path (created if absent) and
// ensures the schema exists. Startup stays idempotent.
func Open(ctx context.Context, path string, logger *slog.Logger) (*AuditStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit db: %w", err)
	}
	s := &AuditStore{db: db, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *AuditStore) Close() error { return s.db.Close() }

func (s *AuditStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id               TEXT PRIMARY KEY,
			document_path    TEXT NOT NULL,
			page             INTEGER NOT NULL,
			started_at       TEXT NOT NULL,
			finished_at      TEXT NOT NULL,
			rounds_completed INTEGER NOT NULL,
			reason           TEXT NOT NULL,
			final_accuracy   REAL NOT NULL,
			final_record     TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			session_id       TEXT NOT NULL REFERENCES sessions(id),
			round            INTEGER NOT NULL,
			accuracy         REAL NOT NULL,
			shift_pattern    TEXT NOT NULL,
			applied_ops      TEXT NOT NULL,
			skipped_ops      TEXT NOT NULL,
			warnings         TEXT NOT NULL,
			model_latency_ms INTEGER NOT NULL,
			PRIMARY KEY (session_id, round)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure audit schema: %w", err)
		}
	}
	return nil
}

// SaveSession writes a session and its rounds in one transaction.
func (s *AuditStore) SaveSession(ctx context.Context, sess Session, rounds []validation.Round) error {
	recJSON, err := json.Marshal(sess.FinalRecord)
	if err != nil {
		return fmt.Errorf("encode final record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, document_path, page, started_at, finished_at,
			rounds_completed, reason, final_accuracy, final_record)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.DocumentPath, sess.Page,
		sess.StartedAt.UTC().Format(timeLayout), sess.FinishedAt.UTC().Format(timeLayout),
		sess.RoundsCompleted, string(sess.Reason), sess.FinalAccuracy, string(recJSON),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}

	for _, r := range rounds {
		applied, err := json.Marshal(r.AppliedOps)
		if err != nil {
			return fmt.Errorf("encode applied ops of round %d: %w", r.Index, err)
		}
		skipped, err := json.Marshal(r.SkippedOps)
		if err != nil {
			return fmt.Errorf("encode skipped ops of round %d: %w", r.Index, err)
		}
		warnings, err := json.Marshal(r.Warnings)
		if err != nil {
			return fmt.Errorf("encode warnings of round %d: %w", r.Index, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rounds (session_id, round, accuracy, shift_pattern,
				applied_ops, skipped_ops, warnings, model_latency_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, r.Index, r.AccuracyEstimate, string(r.ShiftPattern),
			string(applied), string(skipped), string(warnings), r.ModelLatency.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert round %d of session %s: %w", r.Index, sess.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	s.logger.Info("store.audit.saved", "session_id", sess.ID, "rounds", len(rounds))
	return nil
}

// LoadSession returns a stored session with its rounds in round order.
func (s *AuditStore) LoadSession(ctx context.Context, id string) (Session, []validation.Round, error) {
	var (
		sess              Session
		started, finished string
		reason, recJSON   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_path, page, started_at, finished_at,
			rounds_completed, reason, final_accuracy, final_record
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.DocumentPath, &sess.Page, &started, &finished,
		&sess.RoundsCompleted, &reason, &sess.FinalAccuracy, &recJSON)
	if err != nil {
		return Session{}, nil, fmt.Errorf("load session %s: %w", id, err)
	}
	sess.Reason = constants.TerminationReason(reason)
	if sess.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Session{}, nil, fmt.Errorf("parse started_at of %s: %w", id, err)
	}
	if sess.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return Session{}, nil, fmt.Errorf("parse finished_at of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(recJSON), &sess.FinalRecord); err != nil {
		return Session{}, nil, fmt.Errorf("decode final record of %s: %w", id, err)
	}

	rounds, err := s.loadRounds(ctx, id)
	if err != nil {
		return Session{}, nil, err
	}
	return sess, rounds, nil
}

func (s *AuditStore) loadRounds(ctx context.Context, sessionID string) ([]validation.Round, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT round, accuracy, shift_pattern, applied_ops, skipped_ops, warnings, model_latency_ms
		 FROM rounds WHERE session_id = ? ORDER BY round`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load rounds of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []validation.Round
	for rows.Next() {
		var (
			r                          validation.Round
			pattern                    string
			applied, skipped, warnings string
			latencyMS                  int64
		)
		if err := rows.Scan(&r.Index, &r.AccuracyEstimate, &pattern,
			&applied, &skipped, &warnings, &latencyMS); err != nil {
			return nil, fmt.Errorf("scan round of %s: %w", sessionID, err)
		}
		r.ShiftPattern = constants.ShiftPattern(pattern)
		r.ModelLatency = time.Duration(latencyMS) * time.Millisecond
		if err := json.Unmarshal([]byte(applied), &r.AppliedOps); err != nil {
			return nil, fmt.Errorf("decode applied ops: %w", err)
		}
		if err := json.Unmarshal([]byte(skipped), &r.SkippedOps); err != nil {
			return nil, fmt.Errorf("decode skipped ops: %w", err)
		}
		if err := json.Unmarshal([]byte(warnings), &r.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListSessions returns session headers, newest first, without rounds or the
// final record payload.
func (s *AuditStore) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_path, page, started_at, finished_at, rounds_completed, reason, final_accuracy
		 FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess              Session
			started, finished string
			reason            string
		)
		if err := rows.Scan(&sess.ID, &sess.DocumentPath, &sess.Page, &started, &finished,
			&sess.RoundsCompleted, &reason, &sess.FinalAccuracy); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Reason = constants.TerminationReason(reason)
		if sess.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if sess.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
