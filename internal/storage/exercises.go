package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/bilbotrack/internal/models"
)

const exerciseColumns = `id, name, preset_type, icon_key, emoji, created_at, updated_at,
	 is_resting, rest_start_date, rest_end_date, rest_history`

// PutExercise inserts or replaces an exercise. Last write wins on the full
// record.
func (s *Store) PutExercise(ctx context.Context, e models.Exercise) error {
	return putExercise(ctx, s.db, e)
}

func putExercise(ctx context.Context, db execer, e models.Exercise) error {
	history, err := json.Marshal(e.RestHistory)
	if err != nil {
		return fmt.Errorf("encoding rest history: %w", err)
	}
	if e.RestHistory == nil {
		history = []byte("[]")
	}

	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO exercises (`+exerciseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.PresetType, e.IconKey, e.Emoji, e.CreatedAt, e.UpdatedAt,
		e.IsResting, e.RestStartDate, e.RestEndDate, string(history))
	if err != nil {
		return fmt.Errorf("saving exercise: %w", err)
	}
	return nil
}

// GetExercise retrieves one exercise by id.
func (s *Store) GetExercise(ctx context.Context, id string) (models.Exercise, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE id = ?`, id)
	return scanExercise(row)
}

// ListExercises returns all exercises ordered by creation time.
func (s *Store) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+exerciseColumns+` FROM exercises ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var exercises []models.Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		exercises = append(exercises, e)
	}
	return exercises, rows.Err()
}

// DeleteExercise removes an exercise together with its cycles and sessions in
// one transaction. Deleting an absent exercise returns ErrNotFound; the
// cascade itself is idempotent, so a retried partial delete is a no-op for
// children already gone.
func (s *Store) DeleteExercise(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE exercise_id = ?`, id); err != nil {
		return fmt.Errorf("deleting sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cycles WHERE exercise_id = ?`, id); err != nil {
		return fmt.Errorf("deleting cycles: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM exercises WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting exercise: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExercise(row rowScanner) (models.Exercise, error) {
	var e models.Exercise
	var history string
	err := row.Scan(&e.ID, &e.Name, &e.PresetType, &e.IconKey, &e.Emoji,
		&e.CreatedAt, &e.UpdatedAt, &e.IsResting, &e.RestStartDate, &e.RestEndDate, &history)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNotFound
	}
	if err != nil {
		return e, fmt.Errorf("scanning exercise: %w", err)
	}

	if history != "" && history != "[]" {
		if err := json.Unmarshal([]byte(history), &e.RestHistory); err != nil {
			return e, fmt.Errorf("decoding rest history: %w", err)
		}
	}
	return e, nil
}
