package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Spok95/ecoreport-bot/internal/ctxutil"
	"github.com/Spok95/ecoreport-bot/internal/models"
)

const userCols = `id, chat_id, role, class_id, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.ChatID, &u.Role, &u.ClassID, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureUser — пользователь по chat id; новый создаётся с ролью student.
func (s *Store) EnsureUser(ctx context.Context, chatID int64) (*models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	// DO UPDATE, чтобы RETURNING вернул строку и при конфликте
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (chat_id) VALUES ($1)
		ON CONFLICT (chat_id) DO UPDATE SET chat_id = EXCLUDED.chat_id
		RETURNING `+userCols, chatID))
	if err != nil {
		return nil, fmt.Errorf("ensure user %d: %w", chatID, err)
	}
	return u, nil
}

func (s *Store) GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE chat_id = $1`, chatID))
	if noRows(err) {
		return nil, nil
	}
	return u, err
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if noRows(err) {
		return nil, nil
	}
	return u, err
}

func (s *Store) ListUsersByRoles(ctx context.Context, roles ...models.Role) ([]models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE role = ANY($1) ORDER BY id`, pq.Array(names))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// SetUserRole — назначение роли (сид и админские операции).
func (s *Store) SetUserRole(ctx context.Context, chatID int64, role models.Role, classID *int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var cls sql.NullInt64
	if classID != nil {
		cls = sql.NullInt64{Int64: *classID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (chat_id, role, class_id) VALUES ($1, $2, $3)
		ON CONFLICT (chat_id) DO UPDATE SET role = EXCLUDED.role, class_id = COALESCE(EXCLUDED.class_id, users.class_id)
	`, chatID, string(role), cls)
	return err
}
