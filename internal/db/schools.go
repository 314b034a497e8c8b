package db

import (
	"context"

	"github.com/Spok95/ecoreport-bot/internal/ctxutil"
	"github.com/Spok95/ecoreport-bot/internal/models"
)

func (s *Store) ListSchools(ctx context.Context) ([]models.School, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, curator_chat_id FROM schools ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.School
	for rows.Next() {
		var sc models.School
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.CuratorChatID); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) GetSchool(ctx context.Context, id int64) (*models.School, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var sc models.School
	err := s.db.QueryRowContext(ctx, `SELECT id, name, curator_chat_id FROM schools WHERE id = $1`, id).
		Scan(&sc.ID, &sc.Name, &sc.CuratorChatID)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Store) ListClassesBySchool(ctx context.Context, schoolID int64) ([]models.Class, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, school_id, name, curator_chat_id FROM classes
		WHERE school_id = $1 ORDER BY name`, schoolID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Class
	for rows.Next() {
		var c models.Class
		if err := rows.Scan(&c.ID, &c.SchoolID, &c.Name, &c.CuratorChatID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetClass(ctx context.Context, id int64) (*models.Class, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var c models.Class
	err := s.db.QueryRowContext(ctx, `SELECT id, school_id, name, curator_chat_id FROM classes WHERE id = $1`, id).
		Scan(&c.ID, &c.SchoolID, &c.Name, &c.CuratorChatID)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertSchool — по имени; curator_chat_id перезаписывается.
func (s *Store) UpsertSchool(ctx context.Context, name string, curatorChatID *int64) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO schools (name, curator_chat_id) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET curator_chat_id = EXCLUDED.curator_chat_id
		RETURNING id`, name, curatorChatID).Scan(&id)
	return id, err
}

// UpsertClass — по (school_id, name).
func (s *Store) UpsertClass(ctx context.Context, schoolID int64, name string, curatorChatID *int64) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO classes (school_id, name, curator_chat_id) VALUES ($1, $2, $3)
		ON CONFLICT (school_id, name) DO UPDATE SET curator_chat_id = EXCLUDED.curator_chat_id
		RETURNING id`, schoolID, name, curatorChatID).Scan(&id)
	return id, err
}
