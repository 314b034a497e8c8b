// Package reporting — рейтинг, сводка, «Мои отчёты» и выгрузки.
package reporting

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Spok95/ecoreport-bot/internal/chat"
	"github.com/Spok95/ecoreport-bot/internal/export"
	"github.com/Spok95/ecoreport-bot/internal/logging"
	"github.com/Spok95/ecoreport-bot/internal/models"
)

const (
	LeaderboardSize = 10
	SummarySchools  = 5
	MyReportsLimit  = 20

	msgNoRating    = "Нет данных для рейтинга."
	msgNoReports   = "Нет отчётов."
	msgNoUser      = "Пользователь не найден."
	msgCSVFailed   = "Ошибка отправки CSV."
	msgExcelFailed = "Ошибка отправки Excel."
)

type Store interface {
	GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error)
	ListReportsByUser(ctx context.Context, userID int64, limit int) ([]models.Report, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardRow, error)
	ReportCounts(ctx context.Context) (total, accepted int, err error)
	TopSchools(ctx context.Context, limit int) ([]models.SchoolSummary, error)
	ExportRows(ctx context.Context) ([]models.ExportRow, error)
}

// Cache — кэш рейтинга; nil-реализация допустима.
type Cache interface {
	Get(ctx context.Context) ([]models.LeaderboardRow, bool)
	Set(ctx context.Context, rows []models.LeaderboardRow)
	Invalidate(ctx context.Context)
}

type Service struct {
	store  Store
	ch     chat.Channel
	cache  Cache
	loc    *time.Location
	tmpDir string
	log    *zap.Logger
	sf     singleflight.Group
	gen    atomic.Uint64 // растёт при каждой инвалидации рейтинга
}

func NewService(store Store, ch chat.Channel, cache Cache, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, ch: ch, cache: cache, loc: loc, log: log}
}

// WithTempDir — каталог для временных файлов выгрузки (по умолчанию os.TempDir).
func (s *Service) WithTempDir(dir string) *Service {
	s.tmpDir = dir
	return s
}

// LeaderboardRows — топ классов по сумме баллов принятых отчётов.
// Параллельные запросы схлопываются в один поход в БД; загрузка не зависит
// от отмены контекста первого из ожидающих.
func (s *Service) LeaderboardRows(ctx context.Context) ([]models.LeaderboardRow, error) {
	if s.cache != nil {
		if rows, ok := s.cache.Get(ctx); ok {
			return rows, nil
		}
	}
	gen := s.gen.Load()
	ch := s.sf.DoChan("leaderboard", func() (interface{}, error) {
		loadCtx := context.WithoutCancel(ctx)
		rows, err := s.store.Leaderboard(loadCtx, LeaderboardSize)
		if err != nil {
			return nil, err
		}
		// инвалидация во время загрузки: свежесть этих строк не гарантирована
		if s.cache != nil && s.gen.Load() == gen {
			s.cache.Set(loadCtx, rows)
		}
		return rows, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("leaderboard: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("leaderboard: %w", res.Err)
		}
		return res.Val.([]models.LeaderboardRow), nil
	}
}

func (s *Service) InvalidateLeaderboard(ctx context.Context) {
	s.gen.Add(1)
	s.sf.Forget("leaderboard")
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func FormatLeaderboard(rows []models.LeaderboardRow) string {
	if len(rows) == 0 {
		return msgNoRating
	}
	var b strings.Builder
	b.WriteString("Топ классов:\n")
	for i, r := range rows {
		name := r.ClassName
		if r.SchoolName != "" {
			name += " (" + r.SchoolName + ")"
		}
		fmt.Fprintf(&b, "%d. %s — %d\n", i+1, name, r.Total)
	}
	return b.String()
}

func (s *Service) SendLeaderboard(ctx context.Context, chatID int64) error {
	rows, err := s.LeaderboardRows(ctx)
	if err != nil {
		return err
	}
	return s.ch.Send(ctx, chatID, FormatLeaderboard(rows))
}

// SummaryText — всего отчётов, принято и топ школ по баллам.
func (s *Service) SummaryText(ctx context.Context) (string, error) {
	total, accepted, err := s.store.ReportCounts(ctx)
	if err != nil {
		return "", fmt.Errorf("report counts: %w", err)
	}
	schools, err := s.store.TopSchools(ctx, SummarySchools)
	if err != nil {
		return "", fmt.Errorf("top schools: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Сводка:\nВсего отчётов: %d\nПринято: %d\n\nТоп школ по баллам:\n", total, accepted)
	for i, sc := range schools {
		name := "—"
		if sc.Name != nil {
			name = *sc.Name
		}
		fmt.Fprintf(&b, "%d. %s — отчётов %d баллы %d\n", i+1, name, sc.Reports, sc.Points)
	}
	return b.String(), nil
}

func (s *Service) SendSummary(ctx context.Context, chatID int64) error {
	text, err := s.SummaryText(ctx)
	if err != nil {
		return err
	}
	return s.ch.Send(ctx, chatID, text)
}

// MyReports — последние отчёты пользователя, по сообщению на отчёт.
func (s *Service) MyReports(ctx context.Context, chatID int64) error {
	user, err := s.store.GetUserByChatID(ctx, chatID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return s.ch.Send(ctx, chatID, msgNoUser)
	}
	reports, err := s.store.ListReportsByUser(ctx, user.ID, MyReportsLimit)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	if len(reports) == 0 {
		return s.ch.Send(ctx, chatID, msgNoReports)
	}
	for _, r := range reports {
		line := fmt.Sprintf("#%d Статус: %s Баллы:%d Период:%s", r.ID, r.Status, r.Score, r.Period)
		if r.Status == models.StatusNeedsFix {
			line += fmt.Sprintf("\nИсправить: /resubmit_%d", r.ID)
		}
		if err := s.ch.Send(ctx, chatID, line); err != nil {
			return err
		}
	}
	return nil
}

// ExportCSV отправляет все отчёты файлом reports.csv.
func (s *Service) ExportCSV(ctx context.Context, chatID int64) error {
	return s.deliver(ctx, chatID, "reports_export_*.csv", "reports.csv", msgCSVFailed,
		func(w io.Writer, rows []models.ExportRow) error { return export.WriteReportsCSV(w, rows) })
}

// ExportXLSX — то же в Excel, reports.xlsx.
func (s *Service) ExportXLSX(ctx context.Context, chatID int64) error {
	return s.deliver(ctx, chatID, "reports_export_*.xlsx", "reports.xlsx", msgExcelFailed,
		func(w io.Writer, rows []models.ExportRow) error { return export.WriteReportsXLSX(w, rows, s.loc) })
}

// deliver пишет выгрузку во временный файл, отправляет и удаляет его в любом случае.
func (s *Service) deliver(ctx context.Context, chatID int64, pattern, filename, failMsg string,
	write func(io.Writer, []models.ExportRow) error) error {
	rows, err := s.store.ExportRows(ctx)
	if err != nil {
		return fmt.Errorf("export rows: %w", err)
	}
	f, err := os.CreateTemp(s.tmpDir, pattern)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if err := write(f, rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filename, err)
	}

	caption := fmt.Sprintf("Отчётов: %d", len(rows))
	if err := s.ch.SendDocument(ctx, chatID, path, filename, caption); err != nil {
		logging.For(ctx, s.log).Warn("export delivery failed", zap.String("file", filename), zap.Error(err))
		return s.ch.Send(ctx, chatID, failMsg)
	}
	return nil
}
