// ABOUTME: The application settings singleton
// ABOUTME: The row is created on first access and updated in place afterwards

package store

import (
	"context"
	"errors"
	"fmt"
)

const settingsColumns = `id, created_at, updated_at, theme, appearance, update_channel`

func scanSettings(sc scanner) (*Settings, error) {
	var (
		st               Settings
		created, updated string
	)
	if err := sc.Scan(&st.ID, &created, &updated, &st.Theme, &st.Appearance, &st.UpdateChannel); err != nil {
		return nil, err
	}
	var err error
	if st.CreatedAt, st.UpdatedAt, err = stamps(created, updated); err != nil {
		return nil, err
	}
	st.Model = KindSettings
	return &st, nil
}

// GetSettings returns the settings row, or ErrNotFound before it is created.
func (s *SQLiteStore) GetSettings(ctx context.Context) (*Settings, error) {
	return getOne(ctx, s, "settings", scanSettings,
		`SELECT `+settingsColumns+` FROM settings WHERE id = ?`, SettingsID)
}

// GetOrCreateSettings returns the settings row, inserting it with defaults
// if it does not exist yet. Callers treat an error here as fatal.
func (s *SQLiteStore) GetOrCreateSettings(ctx context.Context) (*Settings, error) {
	st, err := s.GetSettings(ctx)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := formatTime(s.now())
	if _, err := s.exec(ctx,
		`INSERT INTO settings (id, created_at, updated_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		SettingsID, now, now); err != nil {
		return nil, fmt.Errorf("creating settings: %w", err)
	}
	s.logger.Info("created default settings")
	return s.GetSettings(ctx)
}

// UpdateSettings overwrites the mutable settings fields.
func (s *SQLiteStore) UpdateSettings(ctx context.Context, st *Settings) (*Settings, error) {
	if _, err := s.GetOrCreateSettings(ctx); err != nil {
		return nil, err
	}

	now := formatTime(s.now())
	if _, err := s.exec(ctx,
		`UPDATE settings SET updated_at = ?, theme = ?, appearance = ?, update_channel = ? WHERE id = ?`,
		now, st.Theme, st.Appearance, st.UpdateChannel, SettingsID); err != nil {
		return nil, fmt.Errorf("updating settings: %w", err)
	}

	out, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	s.upserted(out)
	return out, nil
}
