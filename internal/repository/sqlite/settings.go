package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/roster-search/internal/repository"
)

var _ repository.SettingRepository = (*DB)(nil)

// GetSetting reads a stored setting. ok is false when it was never set.
func (db *DB) GetSetting(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE name = ?`, name,
	).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sqlite: reading setting %s: %w", name, err)
	}
	return value, true, nil
}

// SetSetting stores a setting, replacing any previous value.
func (db *DB) SetSetting(ctx context.Context, name, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO settings (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		name, value,
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing setting %s: %w", name, err)
	}
	return nil
}
