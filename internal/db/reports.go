package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Spok95/ecoreport-bot/internal/ctxutil"
	"github.com/Spok95/ecoreport-bot/internal/models"
)

const reportCols = `id, user_id, class_id, school_id, period, status, score, meta, created_at, updated_at`

func scanReport(row interface{ Scan(...any) error }) (*models.Report, error) {
	var (
		r               models.Report
		classID, school sql.NullInt64
		meta            string
	)
	if err := row.Scan(&r.ID, &r.UserID, &classID, &school, &r.Period, &r.Status, &r.Score, &meta, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ClassID, r.SchoolID = classID.Int64, school.Int64
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &r.Meta); err != nil {
			return nil, fmt.Errorf("report %d meta: %w", r.ID, err)
		}
	}
	return &r, nil
}

func encodeMeta(m models.ReportMeta) (string, error) {
	if m.Fractions == nil {
		m.Fractions = []string{}
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// CreateReport — отчёт, медиа и audit "submit" одной транзакцией.
func (s *Store) CreateReport(ctx context.Context, r *models.Report, media []models.Media) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	meta, err := encodeMeta(r.Meta)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO reports (user_id, class_id, school_id, period, status, score, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`,
		r.UserID, nullID(r.ClassID), nullID(r.SchoolID), r.Period, string(r.Status), r.Score, meta, r.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	if err := insertMedia(ctx, tx, id, media); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit (report_id, actor_id, action, at) VALUES ($1, $2, $3, $4)`,
		id, r.UserID, string(models.ActionSubmit), r.CreatedAt); err != nil {
		return 0, fmt.Errorf("insert audit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func insertMedia(ctx context.Context, tx *sql.Tx, reportID int64, media []models.Media) error {
	if len(media) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO media (report_id, file_ref, type) VALUES ($1, $2, $3)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, m := range media {
		if _, err := stmt.ExecContext(ctx, reportID, m.FileRef, string(m.Type)); err != nil {
			return fmt.Errorf("insert media: %w", err)
		}
	}
	return nil
}

// ApplyTransition — смена статуса с проверкой исходного статуса.
// Если строку уже перевёл кто-то другой, ни одна строка не обновится: ErrConflict.
func (s *Store) ApplyTransition(ctx context.Context, t models.Transition) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var score sql.NullInt64
	if t.Score != nil {
		score = sql.NullInt64{Int64: int64(*t.Score), Valid: true}
	}
	var meta sql.NullString
	if t.Meta != nil {
		m, err := encodeMeta(*t.Meta)
		if err != nil {
			return err
		}
		meta = sql.NullString{String: m, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE reports
		SET status = $3,
		    score = COALESCE($4, score),
		    meta = COALESCE($5, meta),
		    updated_at = $6
		WHERE id = $1 AND status = $2`,
		t.ReportID, string(t.From), string(t.To), score, meta, t.At)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("report %d not in %s: %w", t.ReportID, t.From, models.ErrConflict)
	}
	if err := insertMedia(ctx, tx, t.ReportID, t.Media); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit (report_id, actor_id, action, note, at) VALUES ($1, $2, $3, $4, $5)`,
		t.ReportID, t.ActorID, string(t.Action), t.Note, t.At); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return tx.Commit()
}

func (s *Store) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	r, err := scanReport(s.db.QueryRowContext(ctx, `SELECT `+reportCols+` FROM reports WHERE id = $1`, id))
	if noRows(err) {
		return nil, nil
	}
	return r, err
}

func (s *Store) ListReportsByUser(ctx context.Context, userID int64, limit int) ([]models.Report, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportCols+` FROM reports
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) CountUserReportsInPeriod(ctx context.Context, userID int64, period string) (int, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reports WHERE user_id = $1 AND period = $2`, userID, period).Scan(&n)
	return n, err
}

func (s *Store) ListMedia(ctx context.Context, reportID int64) ([]models.Media, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, report_id, file_ref, type FROM media WHERE report_id = $1 ORDER BY id`, reportID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Media
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(&m.ID, &m.ReportID, &m.FileRef, &m.Type); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListAudit(ctx context.Context, reportID int64) ([]models.Audit, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, actor_id, action, note, at FROM audit
		WHERE report_id = $1 ORDER BY at, id`, reportID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Audit
	for rows.Next() {
		var a models.Audit
		if err := rows.Scan(&a.ID, &a.ReportID, &a.ActorID, &a.Action, &a.Note, &a.At); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
