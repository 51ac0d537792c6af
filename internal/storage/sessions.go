package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/claude/bilbotrack/internal/models"
)

const sessionColumns = `id, exercise_id, cycle_id, phase, datetime, suggested_load_kg,
	 load_used_kg, reps, time_seconds, notes, work_kg, updated_at`

// Sessions are returned newest first: the ISO datetime string sorts
// lexicographically, with updated_at as tiebreaker for same-moment entries.
const sessionOrder = ` ORDER BY datetime DESC, updated_at DESC`

// PutSession inserts or replaces a session.
func (s *Store) PutSession(ctx context.Context, sess models.Session) error {
	return putSession(ctx, s.db, sess)
}

func putSession(ctx context.Context, db execer, sess models.Session) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ExerciseID, sess.CycleID, sess.Phase, sess.Datetime,
		sess.SuggestedLoadKg, sess.LoadUsedKg, sess.Reps, sess.TimeSeconds,
		sess.Notes, sess.WorkKg, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// GetSession retrieves one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// SessionsForExercise returns an exercise's sessions, newest first.
func (s *Store) SessionsForExercise(ctx context.Context, exerciseID string) ([]models.Session, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE exercise_id = ?`+sessionOrder,
		exerciseID)
}

// SessionsForCycle returns a cycle's sessions, newest first.
func (s *Store) SessionsForCycle(ctx context.Context, cycleID string) ([]models.Session, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE cycle_id = ?`+sessionOrder,
		cycleID)
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]models.Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions`+sessionOrder)
}

// DeleteSession removes one session.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func scanSession(row rowScanner) (models.Session, error) {
	var sess models.Session
	err := row.Scan(&sess.ID, &sess.ExerciseID, &sess.CycleID, &sess.Phase, &sess.Datetime,
		&sess.SuggestedLoadKg, &sess.LoadUsedKg, &sess.Reps, &sess.TimeSeconds,
		&sess.Notes, &sess.WorkKg, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sess, ErrNotFound
	}
	if err != nil {
		return sess, fmt.Errorf("scanning session: %w", err)
	}
	return sess, nil
}
