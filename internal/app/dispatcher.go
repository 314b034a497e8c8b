package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Spok95/ecoreport-bot/internal/bot/menu"
	"github.com/Spok95/ecoreport-bot/internal/chat"
	"github.com/Spok95/ecoreport-bot/internal/ctxutil"
	"github.com/Spok95/ecoreport-bot/internal/logging"
	"github.com/Spok95/ecoreport-bot/internal/metrics"
	"github.com/Spok95/ecoreport-bot/internal/models"
	"github.com/Spok95/ecoreport-bot/internal/observability"
	"github.com/Spok95/ecoreport-bot/internal/submission"
)

const (
	msgMenu     = "Меню"
	msgRules    = "Короткие правила:\n1) Обязательное фото/видео\n2) Ограничение по числу отчётов за период\n3) Ручная модерация спорных — через бота\n\nБаллы: 10 + 2 за каждую фракцию + объём (не больше 20)."
	msgContact  = "Напишите сообщение, а админ получит его (реализация — позже)."
	msgInternal = "Внутренняя ошибка. Попробуйте позже."
	msgNoAccess = "Нет доступа."
)

type Store interface {
	EnsureUser(ctx context.Context, chatID int64) (*models.User, error)
	GetClass(ctx context.Context, id int64) (*models.Class, error)
	GetSchool(ctx context.Context, id int64) (*models.School, error)
	ListMedia(ctx context.Context, reportID int64) ([]models.Media, error)
	ListAudit(ctx context.Context, reportID int64) ([]models.Audit, error)
}

// Moderator — двухступенчатая модерация отчётов.
type Moderator interface {
	ClassConfirm(ctx context.Context, reportID, actorChatID int64) (*models.Report, error)
	ClassReject(ctx context.Context, reportID, actorChatID int64) (*models.Report, error)
	SchoolAccept(ctx context.Context, reportID, actorChatID int64) (*models.Report, error)
	SchoolReject(ctx context.Context, reportID, actorChatID int64) (*models.Report, error)
	Authorize(ctx context.Context, action models.AuditAction, reportID, actorChatID int64) (*models.Report, error)
}

type Reports interface {
	SendLeaderboard(ctx context.Context, chatID int64) error
	SendSummary(ctx context.Context, chatID int64) error
	MyReports(ctx context.Context, chatID int64) error
	ExportCSV(ctx context.Context, chatID int64) error
	ExportXLSX(ctx context.Context, chatID int64) error
	InvalidateLeaderboard(ctx context.Context)
}

// Admins — кто видит админ-меню и может выгружать.
type Admins interface {
	IsAdmin(chatID int64) bool
}

type Deps struct {
	Admins    Admins
	Store     Store
	Moderator Moderator
	Flow      *submission.Flow
	Reports   Reports
	Channel   chat.Channel
	Queue     *ChatQueue
	Log       *zap.Logger
}

// Dispatcher маршрутизирует намерения пользователя по обработчикам.
type Dispatcher struct {
	Deps
}

func NewDispatcher(d Deps) *Dispatcher {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Queue == nil {
		log := d.Log
		d.Queue = NewChatQueue(func(chatID int64, p any) {
			metrics.HandlerErrors.Inc()
			log.Error("handler panic", zap.Any("panic", p), zap.Int64("chat_id", chatID))
		})
	}
	return &Dispatcher{Deps: d}
}

// Enqueue ставит намерение в очередь его чата. Намерения одного чата
// обрабатываются в порядке вызова Enqueue.
func (d *Dispatcher) Enqueue(ctx context.Context, in chat.Intent) {
	d.Queue.Submit(in.ChatID, func() { d.Handle(ctx, in) })
}

// Wait ждёт обработки всех поставленных намерений.
func (d *Dispatcher) Wait() { d.Queue.Wait() }

// Handle синхронно обрабатывает одно намерение.
func (d *Dispatcher) Handle(ctx context.Context, in chat.Intent) {
	ctx = ctxutil.WithChatID(ctx, in.ChatID)
	if err := d.route(ctx, in); err != nil {
		d.fail(ctx, in, err)
	}
}

func (d *Dispatcher) route(ctx context.Context, in chat.Intent) error {
	switch in.Kind {
	case chat.KindButton:
		// кнопку подтверждаем сразу, чтобы Telegram снял «часики»
		_ = d.Channel.AnswerButton(ctx, in.CallbackID, "")
		btn, err := ParseButton(in.Data)
		if err != nil {
			return err
		}
		return d.onButton(ctx, in, btn)
	case chat.KindMedia:
		_, err := d.Flow.HandleMedia(ctx, in)
		return err
	case chat.KindCommand, chat.KindText:
		cmd, err := ParseCommand(in.Text)
		if err != nil {
			return err
		}
		if cmd.Kind != CmdNone {
			return d.onCommand(ctx, in, cmd)
		}
		// вне сценария посторонний текст молча игнорируем
		_, err = d.Flow.HandleText(ctx, in)
		return err
	}
	return nil
}

func (d *Dispatcher) onCommand(ctx context.Context, in chat.Intent, cmd Command) error {
	ctx = ctxutil.WithOp(ctx, commandOp(cmd.Kind))
	switch cmd.Kind {
	case CmdStart:
		if _, err := d.Store.EnsureUser(ctx, in.ActorID); err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		d.Flow.Reset(in.ChatID)
		return d.Channel.SendMenu(ctx, in.ChatID, msgMenu, menu.MainMenu(d.Admins.IsAdmin(in.ActorID)))
	case CmdCancel:
		return d.Flow.Cancel(ctx, in)
	case CmdNewReport:
		return d.Flow.Start(ctx, in)
	case CmdMyReports:
		return d.Reports.MyReports(ctx, in.ActorID)
	case CmdRating:
		return d.Reports.SendLeaderboard(ctx, in.ChatID)
	case CmdRules:
		return d.Channel.Send(ctx, in.ChatID, msgRules)
	case CmdContact:
		return d.Channel.Send(ctx, in.ChatID, msgContact)
	case CmdModerate:
		return d.showCard(ctx, in, cmd.ReportID, models.ActionClassConfirm, menu.ClassModeration)
	case CmdSchoolMod:
		return d.showCard(ctx, in, cmd.ReportID, models.ActionSchoolAccept, menu.SchoolModeration)
	case CmdResubmit:
		return d.Flow.StartResubmit(ctx, in, cmd.ReportID)
	case CmdExportCSV, CmdExportXLSX, CmdSummary:
		if !d.Admins.IsAdmin(in.ActorID) {
			return d.Channel.Send(ctx, in.ChatID, msgNoAccess)
		}
		switch cmd.Kind {
		case CmdExportCSV:
			return d.Reports.ExportCSV(ctx, in.ChatID)
		case CmdExportXLSX:
			return d.Reports.ExportXLSX(ctx, in.ChatID)
		default:
			return d.Reports.SendSummary(ctx, in.ChatID)
		}
	}
	return nil
}

func (d *Dispatcher) onButton(ctx context.Context, in chat.Intent, btn Button) error {
	switch btn.Kind {
	case ButtonCancel:
		return d.Flow.Cancel(ctx, in)
	case ButtonSchool:
		return d.Flow.ChooseSchool(ctx, in, btn.ID)
	case ButtonClass:
		return d.Flow.ChooseClass(ctx, in, btn.ID)
	case ButtonClassConfirm:
		if _, err := d.Moderator.ClassConfirm(ctx, btn.ID, in.ActorID); err != nil {
			return err
		}
		return d.Channel.Edit(ctx, in.ChatID, in.MessageID,
			fmt.Sprintf("Отчёт #%d подтверждён и передан куратору школы.", btn.ID), nil)
	case ButtonClassReject:
		if _, err := d.Moderator.ClassReject(ctx, btn.ID, in.ActorID); err != nil {
			return err
		}
		return d.Channel.Edit(ctx, in.ChatID, in.MessageID,
			fmt.Sprintf("Отчёт #%d возвращён на доработку.", btn.ID), nil)
	case ButtonSchoolAccept:
		rep, err := d.Moderator.SchoolAccept(ctx, btn.ID, in.ActorID)
		if err != nil {
			return err
		}
		d.Reports.InvalidateLeaderboard(ctx)
		return d.Channel.Edit(ctx, in.ChatID, in.MessageID,
			fmt.Sprintf("Отчёт #%d принят. Баллы: %d", rep.ID, rep.Score), nil)
	case ButtonSchoolReject:
		if _, err := d.Moderator.SchoolReject(ctx, btn.ID, in.ActorID); err != nil {
			return err
		}
		return d.Channel.Edit(ctx, in.ChatID, in.MessageID, "Отчёт отклонён.", nil)
	}
	return nil
}

// showCard — карточка отчёта с кнопками решения, только для того, кто может решать.
func (d *Dispatcher) showCard(ctx context.Context, in chat.Intent, reportID int64,
	action models.AuditAction, buttons func(int64) [][]chat.Option) error {
	rep, err := d.Moderator.Authorize(ctx, action, reportID, in.ActorID)
	if err != nil {
		return err
	}
	text, err := d.cardText(ctx, rep)
	if err != nil {
		return err
	}
	var rows [][]chat.Option
	if rep.Status == stageOf(action) {
		rows = buttons(rep.ID)
	}
	_, err = d.Channel.SendChoice(ctx, in.ChatID, text, rows)
	return err
}

// stageOf — статус, в котором отчёт ждёт решения на этом этапе.
func stageOf(action models.AuditAction) models.ReportStatus {
	if action == models.ActionSchoolAccept {
		return models.StatusPendingSchool
	}
	return models.StatusPendingClass
}

func (d *Dispatcher) cardText(ctx context.Context, rep *models.Report) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Отчёт #%d\n", rep.ID)
	if cls, err := d.Store.GetClass(ctx, rep.ClassID); err != nil {
		return "", err
	} else if cls != nil {
		fmt.Fprintf(&b, "Класс: %s\n", cls.Name)
	}
	if sch, err := d.Store.GetSchool(ctx, rep.SchoolID); err != nil {
		return "", err
	} else if sch != nil {
		fmt.Fprintf(&b, "Школа: %s\n", sch.Name)
	}
	fractions := "—"
	if len(rep.Meta.Fractions) > 0 {
		fractions = strings.Join(rep.Meta.Fractions, ", ")
	}
	volume := rep.Meta.Volume
	if volume == "" {
		volume = "—"
	}
	fmt.Fprintf(&b, "Фракции: %s\nОбъём: %s\nПериод: %s\nСтатус: %s\n", fractions, volume, rep.Period, rep.Status)

	media, err := d.Store.ListMedia(ctx, rep.ID)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "Вложений: %d\n", len(media))

	audit, err := d.Store.ListAudit(ctx, rep.ID)
	if err != nil {
		return "", err
	}
	if len(audit) > 0 {
		b.WriteString("\nИстория:\n")
		for _, a := range audit {
			fmt.Fprintf(&b, "%s %s", a.At.Format("02.01 15:04"), a.Action)
			if a.Note != "" {
				fmt.Fprintf(&b, " (%s)", a.Note)
			}
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// fail — пользовательские ошибки коротким ответом, остальное в лог, Sentry и метрики.
func (d *Dispatcher) fail(ctx context.Context, in chat.Intent, err error) {
	reply := userMessage(err)
	if reply == "" {
		reply = msgInternal
		metrics.HandlerErrors.Inc()
		logging.For(ctx, d.Log).Error("handler failed", zap.Error(err), zap.Int("kind", int(in.Kind)))
		op, _ := ctxutil.Op(ctx)
		observability.CaptureErrWith(err, map[string]string{"op": op})
	} else {
		logging.For(ctx, d.Log).Debug("rejected", zap.Error(err))
	}
	if sendErr := d.Channel.Send(ctx, in.ChatID, reply); sendErr != nil {
		logging.For(ctx, d.Log).Warn("reply failed", zap.Error(sendErr))
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "Отчёт не найден."
	case errors.Is(err, models.ErrPermissionDenied):
		return msgNoAccess
	case errors.Is(err, models.ErrInvalidTransition):
		return "Отчёт уже обработан."
	case errors.Is(err, models.ErrConflict):
		return "Отчёт уже обработан другим куратором."
	case errors.Is(err, models.ErrEmptyPrerequisite):
		return "Недостаточно данных."
	}
	return ""
}

func commandOp(k CommandKind) string {
	switch k {
	case CmdStart:
		return "start"
	case CmdNewReport:
		return "new_report"
	case CmdModerate, CmdSchoolMod:
		return "moderation_card"
	case CmdResubmit:
		return "resubmit"
	case CmdExportCSV:
		return "export_csv"
	case CmdExportXLSX:
		return "export_xlsx"
	case CmdSummary:
		return "summary"
	case CmdRating:
		return "leaderboard"
	case CmdMyReports:
		return "my_reports"
	}
	return "command"
}
