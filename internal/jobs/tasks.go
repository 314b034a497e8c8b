package jobs

import (
	"context"

	"go.uber.org/zap"
)

// Sweeper — хранилище сессий с вычисткой протухших.
type Sweeper interface {
	Sweep() int
}

// SweepSessions удаляет сессии подачи отчёта, брошенные дольше TTL.
func SweepSessions(s Sweeper, log *zap.Logger) Job {
	return func(context.Context) error {
		if n := s.Sweep(); n > 0 {
			sessionsEvicted.Add(float64(n))
			log.Debug("sessions evicted", zap.Int("count", n))
		}
		return nil
	}
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingDB держит свежей метрику латентности БД между запросами /healthz.
func PingDB(db Pinger) Job {
	return func(ctx context.Context) error {
		return db.Ping(ctx)
	}
}

type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// PeriodRollover — при смене отчётного периода шлёт админам итоги.
// Первый тик только запоминает текущий период. Пока сводка не собрана,
// смена периода не считается обработанной и повторится на следующем тике.
func PeriodRollover(key func() string, summary func(ctx context.Context) (string, error),
	n Notifier, admins []int64, log *zap.Logger) Job {
	var last string
	return func(ctx context.Context) error {
		cur := key()
		if last == "" || cur == last {
			last = cur
			return nil
		}
		text, err := summary(ctx)
		if err != nil {
			return err
		}
		prev := last
		last = cur
		text = "Начался период " + cur + " (закрыт " + prev + ").\n\n" + text
		for _, id := range admins {
			if err := n.Notify(ctx, id, text); err != nil {
				log.Warn("rollover notify failed", zap.Int64("to", id), zap.Error(err))
			}
		}
		return nil
	}
}
