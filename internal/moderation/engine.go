// Package moderation — двухступенчатая модерация отчётов:
// куратор класса подтверждает или возвращает, куратор школы принимает в зачёт или отклоняет.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/ecoreport-bot/internal/ctxutil"
	"github.com/Spok95/ecoreport-bot/internal/logging"
	"github.com/Spok95/ecoreport-bot/internal/metrics"
	"github.com/Spok95/ecoreport-bot/internal/models"
)

// Store — то, что движку нужно от хранилища. Отсутствующая запись — (nil, nil).
type Store interface {
	GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsersByRoles(ctx context.Context, roles ...models.Role) ([]models.User, error)
	GetReport(ctx context.Context, id int64) (*models.Report, error)
	GetClass(ctx context.Context, id int64) (*models.Class, error)
	GetSchool(ctx context.Context, id int64) (*models.School, error)
	// ApplyTransition пишет новый статус только если текущий равен t.From
	// (иначе models.ErrConflict) и добавляет строку audit в той же транзакции.
	ApplyTransition(ctx context.Context, t models.Transition) error
}

type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

type rule struct {
	from models.ReportStatus
	to   models.ReportStatus
	role models.Role // пусто — действует автор отчёта
}

// rules — весь граф переходов. Из accepted/rejected переходов нет.
var rules = map[models.AuditAction]rule{
	models.ActionClassConfirm: {from: models.StatusPendingClass, to: models.StatusPendingSchool, role: models.Curator},
	models.ActionClassReject:  {from: models.StatusPendingClass, to: models.StatusNeedsFix, role: models.Curator},
	models.ActionSchoolAccept: {from: models.StatusPendingSchool, to: models.StatusAccepted, role: models.SchoolCurator},
	models.ActionSchoolReject: {from: models.StatusPendingSchool, to: models.StatusRejected, role: models.SchoolCurator},
	models.ActionResubmit:     {from: models.StatusNeedsFix, to: models.StatusPendingClass},
}

// Next — куда переводит действие из статуса from; ok=false если действие там недопустимо.
func Next(from models.ReportStatus, action models.AuditAction) (models.ReportStatus, bool) {
	r, ok := rules[action]
	if !ok || r.from != from {
		return "", false
	}
	return r.to, true
}

type Engine struct {
	store    Store
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewEngine(store Store, notifier Notifier, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, notifier: notifier, log: log, now: time.Now}
}

// WithClock подменяет часы (для тестов).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) ClassConfirm(ctx context.Context, reportID, actorChatID int64) (*models.Report, error) {
	rep, err := e.apply(ctx, models.ActionClassConfirm, reportID, actorChatID, nil)
	if err != nil {
		return nil, err
	}
	e.notify(ctx, "class_confirm", e.schoolCurators(ctx, rep),
		fmt.Sprintf("Отчёт #%d подтверждён куратором класса. /schoolmod_%d", rep.ID, rep.ID))
	return rep, nil
}

func (e *Engine) ClassReject(ctx context.Context, reportID, actorChatID int64) (*models.Report, error) {
	rep, err := e.apply(ctx, models.ActionClassReject, reportID, actorChatID, nil)
	if err != nil {
		return nil, err
	}
	e.notify(ctx, "class_reject", e.author(ctx, rep),
		fmt.Sprintf("Ваш отчёт #%d возвращён на доработку. Исправить: /resubmit_%d", rep.ID, rep.ID))
	return rep, nil
}

func (e *Engine) SchoolAccept(ctx context.Context, reportID, actorChatID int64) (*models.Report, error) {
	rep, err := e.apply(ctx, models.ActionSchoolAccept, reportID, actorChatID, func(t *models.Transition, r *models.Report) {
		score := Score(r.Meta)
		t.Score = &score
		t.Note = fmt.Sprintf("score=%d", score)
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, "school_accept", e.author(ctx, rep),
		fmt.Sprintf("Ваш отчёт #%d принят. Баллы: %d", rep.ID, rep.Score))
	return rep, nil
}

func (e *Engine) SchoolReject(ctx context.Context, reportID, actorChatID int64) (*models.Report, error) {
	rep, err := e.apply(ctx, models.ActionSchoolReject, reportID, actorChatID, nil)
	if err != nil {
		return nil, err
	}
	e.notify(ctx, "school_reject", e.author(ctx, rep),
		fmt.Sprintf("Ваш отчёт #%d отклонён.", rep.ID))
	return rep, nil
}

// Resubmit возвращает исправленный отчёт куратору класса: новые фракции/объём
// заменяют старые, медиа добавляется.
func (e *Engine) Resubmit(ctx context.Context, reportID, actorChatID int64, meta models.ReportMeta, media []models.Media) (*models.Report, error) {
	rep, err := e.apply(ctx, models.ActionResubmit, reportID, actorChatID, func(t *models.Transition, r *models.Report) {
		t.Meta = &meta
		t.Media = media
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, "resubmit", e.classCurator(ctx, rep),
		fmt.Sprintf("Исправленный отчёт #%d — /moderate_%d", rep.ID, rep.ID))
	return rep, nil
}

// Authorize — те же проверки, что у действия, кроме статуса.
// Нужна, чтобы показать карточку модерации только тому, кто может по ней действовать.
func (e *Engine) Authorize(ctx context.Context, action models.AuditAction, reportID, actorChatID int64) (*models.Report, error) {
	r, ok := rules[action]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	actor, rep, err := e.load(ctx, reportID, actorChatID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, r, actor, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func (e *Engine) apply(ctx context.Context, action models.AuditAction, reportID, actorChatID int64, mutate func(*models.Transition, *models.Report)) (*models.Report, error) {
	ctx = ctxutil.WithOp(ctx, string(action))
	r := rules[action]

	actor, rep, err := e.load(ctx, reportID, actorChatID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, r, actor, rep); err != nil {
		return nil, err
	}
	if rep.Status != r.from {
		return nil, fmt.Errorf("report %d is %s: %w", rep.ID, rep.Status, models.ErrInvalidTransition)
	}

	t := models.Transition{
		ReportID: rep.ID,
		ActorID:  actor.ID,
		Action:   action,
		From:     r.from,
		To:       r.to,
		At:       e.now(),
	}
	if mutate != nil {
		mutate(&t, rep)
	}
	if err := e.store.ApplyTransition(ctx, t); err != nil {
		return nil, fmt.Errorf("apply %s to report %d: %w", action, rep.ID, err)
	}

	rep.Status = t.To
	if t.Score != nil {
		rep.Score = *t.Score
	}
	if t.Meta != nil {
		rep.Meta = *t.Meta
	}
	rep.UpdatedAt = t.At
	metrics.Transitions.WithLabelValues(string(action)).Inc()
	logging.For(ctx, e.log).Info("report transition",
		zap.Int64("report_id", rep.ID),
		zap.Int64("actor_id", actor.ID),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.Int("score", rep.Score),
	)
	return rep, nil
}

func (e *Engine) load(ctx context.Context, reportID, actorChatID int64) (*models.User, *models.Report, error) {
	actor, err := e.store.GetUserByChatID(ctx, actorChatID)
	if err != nil {
		return nil, nil, fmt.Errorf("get actor: %w", err)
	}
	if actor == nil {
		return nil, nil, fmt.Errorf("unknown actor %d: %w", actorChatID, models.ErrPermissionDenied)
	}
	rep, err := e.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, nil, fmt.Errorf("get report: %w", err)
	}
	if rep == nil {
		return nil, nil, fmt.Errorf("report %d: %w", reportID, models.ErrNotFound)
	}
	return actor, rep, nil
}

// authorize: роль плюс «куратор по записи» — куратор класса только своего класса,
// куратор школы — своей школы, если у школы он назначен.
func (e *Engine) authorize(ctx context.Context, r rule, actor *models.User, rep *models.Report) error {
	switch r.role {
	case "":
		if actor.ID != rep.UserID {
			return fmt.Errorf("user %d is not the author of report %d: %w", actor.ID, rep.ID, models.ErrPermissionDenied)
		}
		return nil
	case models.Curator:
		if actor.Role != models.Curator {
			return fmt.Errorf("role %s: %w", actor.Role, models.ErrPermissionDenied)
		}
		cls, err := e.store.GetClass(ctx, rep.ClassID)
		if err != nil {
			return fmt.Errorf("get class: %w", err)
		}
		if cls == nil || cls.CuratorChatID == nil || *cls.CuratorChatID != actor.ChatID {
			return fmt.Errorf("not a curator of class %d: %w", rep.ClassID, models.ErrPermissionDenied)
		}
		return nil
	case models.SchoolCurator:
		if actor.Role != models.SchoolCurator {
			return fmt.Errorf("role %s: %w", actor.Role, models.ErrPermissionDenied)
		}
		sch, err := e.store.GetSchool(ctx, rep.SchoolID)
		if err != nil {
			return fmt.Errorf("get school: %w", err)
		}
		if sch != nil && sch.CuratorChatID != nil && *sch.CuratorChatID != actor.ChatID {
			return fmt.Errorf("not a curator of school %d: %w", rep.SchoolID, models.ErrPermissionDenied)
		}
		return nil
	}
	return models.ErrPermissionDenied
}

// ===== адресаты уведомлений =====

func (e *Engine) author(ctx context.Context, rep *models.Report) []int64 {
	u, err := e.store.GetUserByID(ctx, rep.UserID)
	if err != nil || u == nil {
		e.recipientMissing(ctx, rep, "author", err)
		return nil
	}
	return []int64{u.ChatID}
}

func (e *Engine) classCurator(ctx context.Context, rep *models.Report) []int64 {
	cls, err := e.store.GetClass(ctx, rep.ClassID)
	if err != nil || cls == nil || cls.CuratorChatID == nil {
		e.recipientMissing(ctx, rep, "class_curator", err)
		return nil
	}
	return []int64{*cls.CuratorChatID}
}

// schoolCurators: назначенный куратор школы, а если его нет — все school_curator.
func (e *Engine) schoolCurators(ctx context.Context, rep *models.Report) []int64 {
	sch, err := e.store.GetSchool(ctx, rep.SchoolID)
	if err == nil && sch != nil && sch.CuratorChatID != nil {
		return []int64{*sch.CuratorChatID}
	}
	users, err := e.store.ListUsersByRoles(ctx, models.SchoolCurator)
	if err != nil || len(users) == 0 {
		e.recipientMissing(ctx, rep, "school_curator", err)
		return nil
	}
	out := make([]int64, 0, len(users))
	for _, u := range users {
		out = append(out, u.ChatID)
	}
	return out
}

func (e *Engine) recipientMissing(ctx context.Context, rep *models.Report, who string, err error) {
	metrics.NotifyFailures.WithLabelValues("no_recipient").Inc()
	logging.For(ctx, e.log).Warn("notification recipient not found",
		zap.Int64("report_id", rep.ID), zap.String("recipient", who), zap.Error(err))
}

// notify — best effort: одна попытка, ошибка только в лог и метрики.
// Смена статуса уже записана и не откатывается.
func (e *Engine) notify(ctx context.Context, event string, chatIDs []int64, text string) {
	for _, id := range chatIDs {
		if err := e.notifier.Notify(ctx, id, text); err != nil {
			metrics.NotifyFailures.WithLabelValues(event).Inc()
			logging.For(ctx, e.log).Warn("notification failed",
				zap.String("event", event), zap.Int64("to", id), zap.Error(err))
		}
	}
}

// IsUserError — ошибки, о которых пользователю можно сказать коротким сообщением.
func IsUserError(err error) bool {
	return errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrPermissionDenied) ||
		errors.Is(err, models.ErrInvalidTransition) ||
		errors.Is(err, models.ErrConflict)
}
