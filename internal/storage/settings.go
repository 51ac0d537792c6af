package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/bilbotrack/internal/models"
)

// GetSettings returns the settings singleton, merging whatever is stored over
// the installation defaults. A fresh database yields DefaultSettings.
func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	settings := models.DefaultSettings()

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("reading settings: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return settings, fmt.Errorf("decoding settings: %w", err)
	}
	return settings, nil
}

// SaveSettings replaces the settings singleton.
func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (id, data) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data`,
		string(data))
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// UpdateSettings applies fn to the current settings and saves the result.
func (s *Store) UpdateSettings(ctx context.Context, fn func(*models.Settings)) (models.Settings, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return settings, err
	}
	fn(&settings)
	if err := s.SaveSettings(ctx, settings); err != nil {
		return settings, err
	}
	return settings, nil
}
