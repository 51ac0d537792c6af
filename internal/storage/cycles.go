package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/claude/bilbotrack/internal/models"
)

const cycleColumns = `id, exercise_id, cycle_index, base_rm_kg, improved_rm_kg,
	 started_at, ended_at, is_active`

// PutCycle inserts or replaces a cycle.
func (s *Store) PutCycle(ctx context.Context, c models.Cycle) error {
	return putCycle(ctx, s.db, c)
}

func putCycle(ctx context.Context, db execer, c models.Cycle) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cycles (`+cycleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ExerciseID, c.Index, c.Base1RMKg, c.Improved1RMKg,
		c.StartedAt, c.EndedAt, c.IsActive)
	if err != nil {
		return fmt.Errorf("saving cycle: %w", err)
	}
	return nil
}

// GetCycle retrieves one cycle by id.
func (s *Store) GetCycle(ctx context.Context, id string) (models.Cycle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM cycles WHERE id = ?`, id)
	return scanCycle(row)
}

// CyclesForExercise returns an exercise's cycles ordered by index.
func (s *Store) CyclesForExercise(ctx context.Context, exerciseID string) ([]models.Cycle, error) {
	return s.queryCycles(ctx,
		`SELECT `+cycleColumns+` FROM cycles WHERE exercise_id = ? ORDER BY cycle_index ASC`,
		exerciseID)
}

// ActiveCycleForExercise returns the exercise's active cycle, or ErrNotFound
// when none is active.
func (s *Store) ActiveCycleForExercise(ctx context.Context, exerciseID string) (models.Cycle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM cycles WHERE exercise_id = ? AND is_active = 1`,
		exerciseID)
	return scanCycle(row)
}

// ListCycles returns all cycles.
func (s *Store) ListCycles(ctx context.Context) ([]models.Cycle, error) {
	return s.queryCycles(ctx, `SELECT `+cycleColumns+` FROM cycles ORDER BY started_at ASC`)
}

// DeleteCycle removes a cycle and its sessions in one transaction.
func (s *Store) DeleteCycle(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE cycle_id = ?`, id); err != nil {
		return fmt.Errorf("deleting sessions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM cycles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting cycle: %w", err)
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

func (s *Store) queryCycles(ctx context.Context, query string, args ...any) ([]models.Cycle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cycles: %w", err)
	}
	defer rows.Close()

	var cycles []models.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

func scanCycle(row rowScanner) (models.Cycle, error) {
	var c models.Cycle
	err := row.Scan(&c.ID, &c.ExerciseID, &c.Index, &c.Base1RMKg, &c.Improved1RMKg,
		&c.StartedAt, &c.EndedAt, &c.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("scanning cycle: %w", err)
	}
	return c, nil
}
