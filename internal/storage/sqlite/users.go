package sqlite

import (
	"context"
	"fmt"

	"poolwatch/internal/model"
)

// GetOrCreateUser fetches the user for a Telegram ID, creating the row
// on first contact.
func (s *Store) GetOrCreateUser(ctx context.Context, telegramID int64, username string) (model.User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (telegram_id, username) VALUES (?, ?)
		 ON CONFLICT (telegram_id) DO NOTHING`,
		telegramID, username)
	if err != nil {
		return model.User{}, fmt.Errorf("create user %d: %w", telegramID, err)
	}

	var u model.User
	err = s.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, username, min_tvl_filter, min_apr_filter, created_at
		 FROM users WHERE telegram_id = ?`, telegramID).
		Scan(&u.ID, &u.TelegramID, &u.Username, &u.MinTVLFilter, &u.MinAPRFilter, &u.CreatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("query user %d: %w", telegramID, err)
	}
	return u, nil
}

// CountUsers returns the number of known users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
