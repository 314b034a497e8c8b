package db

import (
	"context"
	"database/sql"

	"github.com/Spok95/ecoreport-bot/internal/ctxutil"
	"github.com/Spok95/ecoreport-bot/internal/models"
)

// Leaderboard — классы по сумме баллов принятых отчётов.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardRow, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, s.name, SUM(r.score) AS total
		FROM reports r
		JOIN classes c ON c.id = r.class_id
		JOIN schools s ON s.id = c.school_id
		WHERE r.status = 'accepted'
		GROUP BY c.id, c.name, s.name
		ORDER BY total DESC, c.name
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.LeaderboardRow
	for rows.Next() {
		var r models.LeaderboardRow
		if err := rows.Scan(&r.ClassName, &r.SchoolName, &r.Total); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ReportCounts(ctx context.Context) (total, accepted int, err error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'accepted') FROM reports`).Scan(&total, &accepted)
	return total, accepted, err
}

// TopSchools — школы по сумме баллов; отчёты без школы — одной строкой с Name == nil.
func (s *Store) TopSchools(ctx context.Context, limit int) ([]models.SchoolSummary, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, COUNT(r.id), COALESCE(SUM(r.score), 0) AS points
		FROM reports r
		LEFT JOIN schools s ON s.id = r.school_id
		GROUP BY s.id, s.name
		ORDER BY points DESC, s.name NULLS LAST
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.SchoolSummary
	for rows.Next() {
		var (
			sum  models.SchoolSummary
			name sql.NullString
		)
		if err := rows.Scan(&name, &sum.Reports, &sum.Points); err != nil {
			return nil, err
		}
		if name.Valid {
			sum.Name = &name.String
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ExportRows — все отчёты для выгрузки, по id.
func (s *Store) ExportRows(ctx context.Context) ([]models.ExportRow, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.user_id, COALESCE(c.name, ''), COALESCE(s.name, ''),
		       r.period, r.status, r.score, r.meta, r.created_at
		FROM reports r
		LEFT JOIN classes c ON c.id = r.class_id
		LEFT JOIN schools s ON s.id = r.school_id
		ORDER BY r.id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.ExportRow
	for rows.Next() {
		var e models.ExportRow
		if err := rows.Scan(&e.ID, &e.UserID, &e.ClassName, &e.SchoolName,
			&e.Period, &e.Status, &e.Score, &e.Meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
