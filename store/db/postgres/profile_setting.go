package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lynnzhiyun/chatpet/store"
)

func (d *DB) UpsertProfileSetting(ctx context.Context, upsert *store.ProfileSetting) (*store.ProfileSetting, error) {
	stmt := `INSERT INTO profile_setting (name, value)
		VALUES (` + placeholders(2) + `)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.Name, upsert.Value); err != nil {
		return nil, fmt.Errorf("failed to upsert profile_setting: %w", err)
	}
	return upsert, nil
}

func (d *DB) ListProfileSettings(ctx context.Context, find *store.FindProfileSetting) ([]*store.ProfileSetting, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.Name != nil {
		where, args = append(where, "name = "+placeholder(len(args)+1)), append(args, *find.Name)
	}

	query := `SELECT name, value FROM profile_setting WHERE ` + strings.Join(where, " AND ")
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profile_settings: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ProfileSetting, 0)
	for rows.Next() {
		s := &store.ProfileSetting{}
		if err := rows.Scan(&s.Name, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan profile_setting: %w", err)
		}
		list = append(list, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profile_settings: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteProfileSetting(ctx context.Context, delete *store.DeleteProfileSetting) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM profile_setting WHERE name = `+placeholder(1), delete.Name); err != nil {
		return fmt.Errorf("failed to delete profile_setting: %w", err)
	}
	return nil
}
