// Package submission — сценарий подачи отчёта: школа → класс → фракции/объём → фото или видео.
package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/ecoreport-bot/internal/bot/menu"
	"github.com/Spok95/ecoreport-bot/internal/chat"
	"github.com/Spok95/ecoreport-bot/internal/ctxutil"
	"github.com/Spok95/ecoreport-bot/internal/logging"
	"github.com/Spok95/ecoreport-bot/internal/metrics"
	"github.com/Spok95/ecoreport-bot/internal/models"
	"github.com/Spok95/ecoreport-bot/internal/period"
)

const (
	msgNoSchools     = "Пока нет добавленных школ. Свяжитесь с админом."
	msgNoClasses     = "Нет классов в этой школе."
	msgChooseSchool  = "Выберите школу:"
	msgChooseClass   = "Выберите класс:"
	msgFractionsHint = "Отметьте фракции (через запятую). Пример: пластик, бумага"
	msgFractionsHelp = "Напишите фракции, затем объём (например: пластик, бумага\nОбъём: 12.5 кг)\n(В следующем сообщении прикрепите фото/видео)"
	msgAwaitMedia    = "Прикрепите фото или видео и нажмите отправить (сообщением)."
	msgSubmitted     = "Отчёт отправлен на проверку куратору класса."
	msgResubmitted   = "Исправленный отчёт отправлен куратору класса."
	msgStale         = "Сценарий устарел. Нажмите «Новый отчёт», чтобы начать заново."
	msgCancelled     = "Отменено."
)

type Store interface {
	EnsureUser(ctx context.Context, chatID int64) (*models.User, error)
	ListSchools(ctx context.Context) ([]models.School, error)
	GetSchool(ctx context.Context, id int64) (*models.School, error)
	ListClassesBySchool(ctx context.Context, schoolID int64) ([]models.Class, error)
	GetClass(ctx context.Context, id int64) (*models.Class, error)
	GetReport(ctx context.Context, id int64) (*models.Report, error)
	CountUserReportsInPeriod(ctx context.Context, userID int64, period string) (int, error)
	// CreateReport пишет отчёт, его медиа и строку audit "submit" одной транзакцией.
	CreateReport(ctx context.Context, r *models.Report, media []models.Media) (int64, error)
}

// Resubmitter — переход needs_fix → pending_class (его делает движок модерации).
type Resubmitter interface {
	Resubmit(ctx context.Context, reportID, actorChatID int64, meta models.ReportMeta, media []models.Media) (*models.Report, error)
}

type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

type Options struct {
	Granularity  period.Granularity
	MaxPerPeriod int // 0 — без ограничения
	Now          func() time.Time
}

type Flow struct {
	store    Store
	sessions *Sessions
	ch       chat.Channel
	notifier Notifier
	resubmit Resubmitter
	opts     Options
	log      *zap.Logger
}

func NewFlow(store Store, sessions *Sessions, ch chat.Channel, notifier Notifier, resubmit Resubmitter, opts Options, log *zap.Logger) *Flow {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{store: store, sessions: sessions, ch: ch, notifier: notifier, resubmit: resubmit, opts: opts, log: log}
}

// Active — есть ли у чата незавершённый сценарий.
func (f *Flow) Active(chatID int64) bool {
	_, ok := f.sessions.Get(chatID)
	return ok
}

// Start — кнопка «Новый отчёт».
func (f *Flow) Start(ctx context.Context, in chat.Intent) error {
	f.sessions.Clear(in.ChatID)

	if f.opts.MaxPerPeriod > 0 {
		user, err := f.store.EnsureUser(ctx, in.ActorID)
		if err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		key := period.Key(f.opts.Now(), f.opts.Granularity)
		n, err := f.store.CountUserReportsInPeriod(ctx, user.ID, key)
		if err != nil {
			return fmt.Errorf("count reports: %w", err)
		}
		if n >= f.opts.MaxPerPeriod {
			return f.ch.Send(ctx, in.ChatID, fmt.Sprintf("Лимит отчётов за период %s исчерпан (%d).", key, f.opts.MaxPerPeriod))
		}
	}

	schools, err := f.store.ListSchools(ctx)
	if err != nil {
		return fmt.Errorf("list schools: %w", err)
	}
	if len(schools) == 0 {
		return f.ch.Send(ctx, in.ChatID, msgNoSchools)
	}
	msgID, err := f.ch.SendChoice(ctx, in.ChatID, msgChooseSchool, menu.SchoolOptions(schools))
	if err != nil {
		return err
	}
	f.sessions.Put(in.ChatID, Session{Step: StepChooseSchool, MessageID: msgID})
	return nil
}

func (f *Flow) ChooseSchool(ctx context.Context, in chat.Intent, schoolID int64) error {
	st, ok := f.sessions.Get(in.ChatID)
	if !ok || st.Step != StepChooseSchool {
		return f.stale(ctx, in)
	}
	school, err := f.store.GetSchool(ctx, schoolID)
	if err != nil {
		return fmt.Errorf("get school: %w", err)
	}
	if school == nil {
		return f.ch.Edit(ctx, in.ChatID, in.MessageID, "Школа не найдена.", nil)
	}
	classes, err := f.store.ListClassesBySchool(ctx, school.ID)
	if err != nil {
		return fmt.Errorf("list classes: %w", err)
	}
	if len(classes) == 0 {
		// шаг не двигаем
		return f.ch.Edit(ctx, in.ChatID, in.MessageID, msgNoClasses, nil)
	}

	st.Draft.SchoolID = school.ID
	st.Step = StepChooseClass
	st.MessageID = in.MessageID
	f.sessions.Put(in.ChatID, st)
	return f.ch.Edit(ctx, in.ChatID, in.MessageID, msgChooseClass, menu.ClassOptions(classes))
}

func (f *Flow) ChooseClass(ctx context.Context, in chat.Intent, classID int64) error {
	st, ok := f.sessions.Get(in.ChatID)
	if !ok || st.Step != StepChooseClass {
		return f.stale(ctx, in)
	}
	cls, err := f.store.GetClass(ctx, classID)
	if err != nil {
		return fmt.Errorf("get class: %w", err)
	}
	// класс обязан принадлежать выбранной школе
	if cls == nil || cls.SchoolID != st.Draft.SchoolID {
		return f.ch.Edit(ctx, in.ChatID, in.MessageID, "Класс не найден.", nil)
	}

	st.Draft.ClassID = cls.ID
	st.Step = StepChooseFractions
	f.sessions.Put(in.ChatID, st)
	if err := f.ch.Edit(ctx, in.ChatID, in.MessageID, msgFractionsHint, nil); err != nil {
		return err
	}
	return f.ch.Send(ctx, in.ChatID, msgFractionsHelp)
}

// Cancel — кнопка «Отмена» или текст "отмена".
func (f *Flow) Cancel(ctx context.Context, in chat.Intent) error {
	f.sessions.Clear(in.ChatID)
	if in.Kind == chat.KindButton {
		return f.ch.Edit(ctx, in.ChatID, in.MessageID, msgCancelled, nil)
	}
	return f.ch.Send(ctx, in.ChatID, msgCancelled)
}

// Reset молча сбрасывает сценарий (/start).
func (f *Flow) Reset(chatID int64) {
	f.sessions.Clear(chatID)
}

// HandleText — текст внутри сценария. handled=false — сценария нет.
func (f *Flow) HandleText(ctx context.Context, in chat.Intent) (bool, error) {
	st, ok := f.sessions.Get(in.ChatID)
	if !ok {
		return false, nil
	}
	if IsCancelText(in.Text) {
		return true, f.Cancel(ctx, in)
	}
	if st.Step != StepChooseFractions {
		// на шагах с кнопками и при ожидании медиа текст игнорируем
		return true, nil
	}

	st.Draft.Fractions, st.Draft.Volume = ParseFractions(in.Text)
	st.Step = StepAwaitMedia
	f.sessions.Put(in.ChatID, st)
	return true, f.ch.Send(ctx, in.ChatID, msgAwaitMedia)
}

// HandleMedia — фото/видео на шаге await_media создаёт отчёт (или завершает исправление).
func (f *Flow) HandleMedia(ctx context.Context, in chat.Intent) (bool, error) {
	st, ok := f.sessions.Get(in.ChatID)
	if !ok || st.Step != StepAwaitMedia {
		return false, nil
	}
	fileID, ok := PickFile(in.Media)
	if !ok {
		return true, nil
	}
	media := models.Media{FileRef: fileID, Type: models.MediaPhoto}
	if in.Media.Video {
		media.Type = models.MediaVideo
	}
	meta := models.ReportMeta{Fractions: st.Draft.Fractions, Volume: st.Draft.Volume}
	if meta.Fractions == nil {
		meta.Fractions = []string{}
	}

	if st.Draft.ResubmitID != 0 {
		return true, f.finishResubmit(ctx, in, st, meta, media)
	}

	ctx = ctxutil.WithOp(ctx, "submit_report")
	user, err := f.store.EnsureUser(ctx, in.ActorID)
	if err != nil {
		return true, fmt.Errorf("ensure user: %w", err)
	}
	cls, err := f.store.GetClass(ctx, st.Draft.ClassID)
	if err != nil {
		return true, fmt.Errorf("get class: %w", err)
	}
	if cls == nil {
		f.sessions.Clear(in.ChatID)
		return true, f.ch.Send(ctx, in.ChatID, "Класс не найден. Начните заново.")
	}

	now := f.opts.Now()
	rep := &models.Report{
		UserID:    user.ID,
		ClassID:   cls.ID,
		SchoolID:  cls.SchoolID,
		Period:    period.Key(now, f.opts.Granularity),
		Status:    models.StatusPendingClass,
		Score:     0,
		Meta:      meta,
		CreatedAt: now,
	}
	id, err := f.store.CreateReport(ctx, rep, []models.Media{media})
	if err != nil {
		// сессия остаётся на await_media — можно прислать файл ещё раз
		return true, fmt.Errorf("create report: %w", err)
	}
	f.sessions.Clear(in.ChatID)
	metrics.ReportsSubmitted.Inc()
	logging.For(ctx, f.log).Info("report submitted",
		zap.Int64("report_id", id), zap.Int64("class_id", cls.ID), zap.String("period", rep.Period))

	if cls.CuratorChatID != nil {
		f.notify(ctx, "submit", *cls.CuratorChatID, fmt.Sprintf("Новый отчёт от класса %s — /moderate_%d", cls.Name, id))
	} else {
		metrics.NotifyFailures.WithLabelValues("no_recipient").Inc()
		logging.For(ctx, f.log).Warn("class has no curator", zap.Int64("class_id", cls.ID))
	}
	return true, f.ch.Send(ctx, in.ChatID, msgSubmitted)
}

// StartResubmit — /resubmit_<id>: автор исправляет отчёт, возвращённый на доработку.
func (f *Flow) StartResubmit(ctx context.Context, in chat.Intent, reportID int64) error {
	user, err := f.store.EnsureUser(ctx, in.ActorID)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	rep, err := f.store.GetReport(ctx, reportID)
	if err != nil {
		return fmt.Errorf("get report: %w", err)
	}
	switch {
	case rep == nil:
		return f.ch.Send(ctx, in.ChatID, "Отчёт не найден.")
	case rep.UserID != user.ID:
		return f.ch.Send(ctx, in.ChatID, "Нет доступа.")
	case rep.Status != models.StatusNeedsFix:
		return f.ch.Send(ctx, in.ChatID, fmt.Sprintf("Отчёт #%d не ожидает доработки.", rep.ID))
	}
	f.sessions.Put(in.ChatID, Session{
		Step:  StepChooseFractions,
		Draft: Draft{SchoolID: rep.SchoolID, ClassID: rep.ClassID, ResubmitID: rep.ID},
	})
	return f.ch.Send(ctx, in.ChatID, fmt.Sprintf("Исправление отчёта #%d.\n%s", rep.ID, msgFractionsHelp))
}

func (f *Flow) finishResubmit(ctx context.Context, in chat.Intent, st Session, meta models.ReportMeta, media models.Media) error {
	_, err := f.resubmit.Resubmit(ctx, st.Draft.ResubmitID, in.ActorID, meta, []models.Media{media})
	switch {
	case err == nil:
		f.sessions.Clear(in.ChatID)
		return f.ch.Send(ctx, in.ChatID, msgResubmitted)
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrPermissionDenied):
		f.sessions.Clear(in.ChatID)
		return f.ch.Send(ctx, in.ChatID, fmt.Sprintf("Отчёт #%d нельзя исправить.", st.Draft.ResubmitID))
	default:
		return fmt.Errorf("resubmit: %w", err)
	}
}

func (f *Flow) stale(ctx context.Context, in chat.Intent) error {
	if in.Kind == chat.KindButton {
		return f.ch.Edit(ctx, in.ChatID, in.MessageID, msgStale, nil)
	}
	return f.ch.Send(ctx, in.ChatID, msgStale)
}

func (f *Flow) notify(ctx context.Context, event string, chatID int64, text string) {
	if err := f.notifier.Notify(ctx, chatID, text); err != nil {
		metrics.NotifyFailures.WithLabelValues(event).Inc()
		logging.For(ctx, f.log).Warn("notification failed",
			zap.String("event", event), zap.Int64("to", chatID), zap.Error(err))
	}
}
