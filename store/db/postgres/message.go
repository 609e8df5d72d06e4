package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lynnzhiyun/chatpet/store"
)

func (d *DB) UpsertMessage(ctx context.Context, upsert *store.Message) (*store.Message, error) {
	fields := []string{"uid", "content", "sender", "created_ts", "day"}
	args := []any{upsert.UID, upsert.Content, string(upsert.Sender), upsert.CreatedTs, upsert.Day}

	stmt := `INSERT INTO message (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		ON CONFLICT (uid) DO UPDATE SET
			content = EXCLUDED.content,
			sender = EXCLUDED.sender,
			created_ts = EXCLUDED.created_ts,
			day = EXCLUDED.day`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to upsert message: %w", err)
	}

	return upsert, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.Day != nil {
		where, args = append(where, "day = "+placeholder(len(args)+1)), append(args, *find.Day)
	}

	query := `SELECT uid, content, sender, created_ts, day FROM message WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Message, 0)
	for rows.Next() {
		m := &store.Message{}
		var sender string
		if err := rows.Scan(&m.UID, &m.Content, &sender, &m.CreatedTs, &m.Day); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Sender = store.Sender(sender)
		list = append(list, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return list, nil
}

func (d *DB) ListDistinctDays(ctx context.Context) ([]string, error) {
	query := `SELECT day FROM message GROUP BY day ORDER BY MAX(created_ts) DESC`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct days: %w", err)
	}
	defer rows.Close()

	days := make([]string, 0)
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan day: %w", err)
		}
		days = append(days, day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate days: %w", err)
	}

	return days, nil
}

func (d *DB) GetLastMessageOfDay(ctx context.Context, day string) (*store.Message, error) {
	query := `SELECT uid, content, sender, created_ts, day FROM message WHERE day = ` + placeholder(1) + ` ORDER BY created_ts DESC LIMIT 1`
	m := &store.Message{}
	var sender string
	if err := d.db.QueryRowContext(ctx, query, day).Scan(&m.UID, &m.Content, &sender, &m.CreatedTs, &m.Day); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last message of day: %w", err)
	}
	m.Sender = store.Sender(sender)
	return m, nil
}

func (d *DB) DeleteMessages(ctx context.Context, delete *store.DeleteMessage) (int64, error) {
	where, args := []string{"1 = 1"}, []any{}
	if delete.Day != nil {
		where, args = append(where, "day = "+placeholder(len(args)+1)), append(args, *delete.Day)
	}

	stmt := `DELETE FROM message WHERE ` + strings.Join(where, " AND ")
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted messages: %w", err)
	}
	return count, nil
}
