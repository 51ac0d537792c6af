package storage

import (
	"context"
	"fmt"

	"github.com/claude/bilbotrack/internal/models"
)

// MaxUpdatedAt returns the highest modification timestamp across all mutable
// records: exercise updates, cycle start/end edits, and session updates. The
// sync coordinator compares it against lastSyncedAt to detect local changes.
func (s *Store) MaxUpdatedAt(ctx context.Context) (int64, error) {
	var max int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(ts), 0) FROM (
			SELECT MAX(updated_at) AS ts FROM exercises
			UNION ALL
			SELECT MAX(started_at) FROM cycles
			UNION ALL
			SELECT MAX(ended_at) FROM cycles
			UNION ALL
			SELECT MAX(updated_at) FROM sessions
		)`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("querying max updated at: %w", err)
	}
	return max, nil
}

// Counts returns the number of exercises, cycles, and sessions.
func (s *Store) Counts(ctx context.Context) (exercises, cycles, sessions int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM exercises),
		       (SELECT COUNT(*) FROM cycles),
		       (SELECT COUNT(*) FROM sessions)`).
		Scan(&exercises, &cycles, &sessions)
	if err != nil {
		err = fmt.Errorf("counting records: %w", err)
	}
	return exercises, cycles, sessions, err
}

// ExportAll captures the entire local dataset.
func (s *Store) ExportAll(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	var err error

	if snap.Settings, err = s.GetSettings(ctx); err != nil {
		return snap, err
	}
	if snap.Exercises, err = s.ListExercises(ctx); err != nil {
		return snap, err
	}
	if snap.Cycles, err = s.ListCycles(ctx); err != nil {
		return snap, err
	}
	if snap.Sessions, err = s.ListSessions(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

// ImportAll replaces all training data with the snapshot's, inside one
// transaction. The sync sub-state of the local settings (enabled flag, state,
// profile, last-synced time) is preserved; everything else comes from the
// snapshot.
func (s *Store) ImportAll(ctx context.Context, snap models.Snapshot) error {
	current, err := s.GetSettings(ctx)
	if err != nil {
		return err
	}

	merged := snap.Settings
	merged.SyncEnabled = current.SyncEnabled
	merged.SyncState = current.SyncState
	merged.Profile = current.Profile
	merged.LastSyncedAt = current.LastSyncedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting import: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"sessions", "cycles", "exercises"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, e := range snap.Exercises {
		if err := putExercise(ctx, tx, e); err != nil {
			return err
		}
	}
	for _, c := range snap.Cycles {
		if err := putCycle(ctx, tx, c); err != nil {
			return err
		}
	}
	for _, sess := range snap.Sessions {
		if err := putSession(ctx, tx, sess); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}

	return s.SaveSettings(ctx, merged)
}

// ClearAll removes all training data and resets settings to defaults.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting clear: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"sessions", "cycles", "exercises", "settings"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}
