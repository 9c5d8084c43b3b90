package blockstore

import (
	"context"
	"fmt"

	"github.com/blackmichael/bluesky-extract/internal/domain"
)

// Settings reads the plugin settings, applying defaults for unset keys.
func (s *Store) Settings(ctx context.Context) (domain.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return domain.Settings{}, fmt.Errorf("scan setting: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return domain.Settings{}, fmt.Errorf("iterate settings: %w", err)
	}
	return domain.SettingsFromMap(values), nil
}

// SetSetting validates and stores one setting. An empty value restores the default.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if err := domain.ValidateSetting(key, value); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		key, value,
	)
	if err != nil {
		return fmt.Errorf("store setting %s: %w", key, err)
	}
	return nil
}
